// Package handler adapts SQS Lambda deliveries to the batch processor.
package handler

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"

	"risksync/internal/usecase"
)

// BatchProcessor is the orchestration service consumed by the handler.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, msgs []usecase.QueueMessage) []string
}

type Handler struct {
	processor BatchProcessor
}

func NewHandler(processor BatchProcessor) (*Handler, error) {
	if processor == nil {
		return nil, errors.New("handler: processor must not be nil")
	}
	return &Handler{processor: processor}, nil
}

// Handle processes one SQS delivery batch. Only the ids listed in
// BatchItemFailures are redelivered by the queue; everything else is
// acknowledged, so per-item failures are reported in the response rather
// than by returning an error (which would redeliver the whole batch).
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	msgs := make([]usecase.QueueMessage, 0, len(event.Records))
	for _, r := range event.Records {
		msgs = append(msgs, usecase.QueueMessage{ID: r.MessageId, Body: r.Body})
	}

	failed := h.processor.ProcessBatch(ctx, msgs)

	resp := events.SQSEventResponse{}
	for _, id := range failed {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	return resp, nil
}
