package storage

import (
	"context"

	"drainReversal/internal/model"
)

// Storage defines a sink for log records emitted by executed calls.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
}

// Multi fans a batch out to every sink in order.
type Multi []Storage

func (m Multi) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutLogBatch(ctx, logs); err != nil {
			return err
		}
	}
	return nil
}
