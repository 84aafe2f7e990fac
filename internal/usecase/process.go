package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"risksync/internal/domain"
)

const defaultConcurrency = 8

type PredictionService interface {
	Predict(ctx context.Context, inputData map[string]any) (domain.Prediction, error)
}

type RecordStore interface {
	Ping(ctx context.Context) error
	Upsert(ctx context.Context, rec domain.RiskRecord) error
}

// QueueMessage is one delivery from the sync queue: the queue-assigned id
// used for redelivery plus the raw JSON body.
type QueueMessage struct {
	ID   string
	Body string
}

// Processor drives a batch of queue messages through validation, prediction,
// and persistence.
type Processor struct {
	predictor   PredictionService
	store       RecordStore
	concurrency int
}

func NewProcessor(predictor PredictionService, store RecordStore, concurrency int) (*Processor, error) {
	if predictor == nil {
		return nil, errors.New("usecase: predictor must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: record store must not be nil")
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Processor{predictor: predictor, store: store, concurrency: concurrency}, nil
}

// Test seam; batches stamp lastProcessedAt through this.
var nowUTC = func() time.Time { return time.Now().UTC() }

// ProcessBatch processes every message concurrently and returns the ids that
// failed, for redelivery by the queue. A dead record store fails the whole
// batch up front without any model calls. Per-message failures are contained:
// one message's error never aborts its siblings, and the Processor adds no
// retries beyond what the predictor and store already perform internally.
func (p *Processor) ProcessBatch(ctx context.Context, msgs []QueueMessage) []string {
	if len(msgs) == 0 {
		return nil
	}
	log := slog.With("batchId", uuid.NewString(), "size", len(msgs))

	if err := p.store.Ping(ctx); err != nil {
		depErr := newError(ErrorDependencyUnavailable, "record_store_unreachable", err)
		log.Error("record store unreachable, failing entire batch", "err", depErr)
		failed := make([]string, 0, len(msgs))
		for _, m := range msgs {
			failed = append(failed, m.ID)
		}
		return failed
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for _, m := range msgs {
		g.Go(func() error {
			if err := p.processMessage(ctx, m); err != nil {
				log.Error("message failed", "messageId", m.ID, "err", err)
				mu.Lock()
				failed = append(failed, m.ID)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("batch processed", "succeeded", len(msgs)-len(failed), "failed", len(failed))
	return failed
}

func (p *Processor) processMessage(ctx context.Context, m QueueMessage) error {
	msg, err := ParseRowMessage(m.Body)
	if err != nil {
		return err
	}

	prediction, err := p.predictor.Predict(ctx, msg.InputData)
	if err != nil {
		return err
	}

	rec := domain.RiskRecord{
		OwnerID:           msg.OwnerID,
		SpreadsheetID:     msg.SpreadsheetID,
		RowIndex:          msg.RowIndex,
		ProjectIdentifier: msg.ProjectIdentifier,
		SyncTimestamp:     msg.SyncTimestamp,
		SourceData:        msg.InputData,
		Prediction:        prediction,
		LastProcessedAt:   nowUTC().Format(time.RFC3339),
	}
	if err := p.store.Upsert(ctx, rec); err != nil {
		return newError(ErrorPersistence, "record_write_error", err)
	}
	return nil
}
