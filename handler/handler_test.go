package handler

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"risksync/internal/usecase"
)

type stubProcessor struct {
	failed []string
	in     []usecase.QueueMessage
}

func (s *stubProcessor) ProcessBatch(_ context.Context, msgs []usecase.QueueMessage) []string {
	s.in = msgs
	return s.failed
}

func makeEvent(bodies map[string]string) events.SQSEvent {
	var event events.SQSEvent
	for id, body := range bodies {
		event.Records = append(event.Records, events.SQSMessage{MessageId: id, Body: body})
	}
	return event
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_AllSucceed(t *testing.T) {
	p := &stubProcessor{}
	h, err := NewHandler(p)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(map[string]string{
		"msg-1": `{"a":1}`,
		"msg-2": `{"b":2}`,
	}))
	require.NoError(t, err)
	require.Empty(t, resp.BatchItemFailures)
	require.Len(t, p.in, 2)
}

func TestHandle_MapsRecordsToQueueMessages(t *testing.T) {
	p := &stubProcessor{}
	h, err := NewHandler(p)
	require.NoError(t, err)

	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "msg-1", Body: `{"spreadsheetId":"s"}`},
	}}
	_, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, []usecase.QueueMessage{{ID: "msg-1", Body: `{"spreadsheetId":"s"}`}}, p.in)
}

func TestHandle_ReportsFailedIDs(t *testing.T) {
	p := &stubProcessor{failed: []string{"msg-2", "msg-3"}}
	h, err := NewHandler(p)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(map[string]string{
		"msg-1": `{}`, "msg-2": `{}`, "msg-3": `{}`,
	}))
	require.NoError(t, err, "per-item failures must not fail the whole batch")
	require.ElementsMatch(t,
		[]events.SQSBatchItemFailure{{ItemIdentifier: "msg-2"}, {ItemIdentifier: "msg-3"}},
		resp.BatchItemFailures,
	)
}

func TestHandle_EmptyEvent(t *testing.T) {
	p := &stubProcessor{}
	h, err := NewHandler(p)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), events.SQSEvent{})
	require.NoError(t, err)
	require.Empty(t, resp.BatchItemFailures)
}
