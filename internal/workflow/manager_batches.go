package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"archflow/internal/logging"
	"archflow/internal/notifications"
	"archflow/internal/store"
)

// AddBatch registers an import batch in the LOADING state.
func (m *Manager) AddBatch(ctx context.Context, req BatchRequest) (batch *store.Batch, err error) {
	ctx, span := m.startSpan(ctx, "AddBatch", attribute.String("folder", req.Folder))
	defer func() { endSpan(span, err) }()

	folder := strings.TrimSpace(req.Folder)
	if folder == "" {
		return nil, validation("add batch", "batch folder is required")
	}
	batch = &store.Batch{
		Folder:      folder,
		Title:       strings.TrimSpace(req.Title),
		ProfileName: strings.TrimSpace(req.ProfileName),
		Owner:       strings.TrimSpace(req.Owner),
		State:       store.BatchLoading,
		JobID:       req.JobID,
	}
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		if batch.JobID > 0 {
			if _, err := tx.GetJob(ctx, batch.JobID); err != nil {
				return err
			}
		}
		return tx.InsertBatch(ctx, batch)
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, m.logger).Info("batch registered",
		logging.Entity("batch", batch.ID),
		logging.String("folder", batch.Folder),
		logging.String(logging.FieldEventType, "batch_added"),
	)
	return batch, nil
}

// GetBatch returns the batch with id.
func (m *Manager) GetBatch(ctx context.Context, id int64) (*store.Batch, error) {
	var batch *store.Batch
	err := m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		batch, err = tx.GetBatch(ctx, id)
		return err
	})
	return batch, err
}

// UpdateBatch moves a batch along its import lifecycle.
func (m *Manager) UpdateBatch(ctx context.Context, update BatchUpdate) (batch *store.Batch, err error) {
	ctx, span := m.startSpan(ctx, "UpdateBatch", attribute.Int64("batch.id", update.ID))
	defer func() { endSpan(span, err) }()

	var from store.BatchState
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		batch, err = tx.GetBatch(ctx, update.ID)
		if err != nil {
			return err
		}
		if err := checkVersion("batch", batch.ID, update.Version, batch.Version); err != nil {
			return err
		}
		from = batch.State
		if update.State != nil && *update.State != batch.State {
			if !update.State.Valid() {
				return validation("update batch", fmt.Sprintf("unknown batch state %q", *update.State))
			}
			if !batch.State.CanTransition(*update.State) {
				return validation("update batch", fmt.Sprintf("batch %d cannot move from %s to %s", batch.ID, batch.State, *update.State))
			}
			batch.State = *update.State
		}
		if update.Log != nil {
			batch.Log = *update.Log
		}
		if update.ItemCount != nil {
			if *update.ItemCount < 0 {
				return validation("update batch", "item count cannot be negative")
			}
			batch.ItemCount = *update.ItemCount
		}
		if update.JobID != nil {
			if *update.JobID > 0 {
				if _, err := tx.GetJob(ctx, *update.JobID); err != nil {
					return err
				}
			}
			batch.JobID = *update.JobID
		}
		return tx.UpdateBatch(ctx, batch)
	})
	if err != nil {
		return nil, err
	}
	if from != batch.State {
		logging.WithContext(ctx, m.logger).Info("batch state changed",
			logging.Entity("batch", batch.ID),
			logging.String("from", string(from)),
			logging.String("to", string(batch.State)),
			logging.String(logging.FieldEventType, "batch_transition"),
		)
		m.notifyBatch(ctx, batch)
	}
	return batch, nil
}

func (m *Manager) notifyBatch(ctx context.Context, batch *store.Batch) {
	switch batch.State {
	case store.BatchIngested:
		m.notify(ctx, notifications.EventBatchIngested, notifications.Payload{
			"folder": batch.Folder,
			"items":  strconv.Itoa(batch.ItemCount),
		})
	case store.BatchLoadingFailed, store.BatchIngestingFailed:
		m.notify(ctx, notifications.EventBatchFailed, notifications.Payload{
			"folder": batch.Folder,
			"state":  string(batch.State),
			"log":    batch.Log,
		})
	}
}
