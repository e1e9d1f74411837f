package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"archflow/internal/logging"
	"archflow/internal/metadata"
	"archflow/internal/profile"
	"archflow/internal/services"
	"archflow/internal/store"
)

// GetMaterial returns the material with id.
func (m *Manager) GetMaterial(ctx context.Context, id int64) (*store.Material, error) {
	var material *store.Material
	err := m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		material, err = tx.GetMaterial(ctx, id)
		return err
	})
	return material, err
}

// UpdateMaterial applies update to a material of an open job. New metadata
// must be valid MODS and refreshes the label unless a label is given too.
func (m *Manager) UpdateMaterial(ctx context.Context, update MaterialUpdate) (material *store.Material, err error) {
	ctx, span := m.startSpan(ctx, "UpdateMaterial", attribute.Int64("material.id", update.ID))
	defer func() { endSpan(span, err) }()

	var summary *metadata.Summary
	if update.Metadata != nil {
		parsed, err := metadata.ParseMODS(*update.Metadata)
		if err != nil {
			return nil, err
		}
		summary = &parsed
	}

	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		material, err = tx.GetMaterial(ctx, update.ID)
		if err != nil {
			return err
		}
		if err := checkVersion("material", material.ID, update.Version, material.Version); err != nil {
			return err
		}
		job, err := tx.GetJob(ctx, material.JobID)
		if err != nil {
			return err
		}
		if job.State != store.JobOpen {
			return validation("update material", fmt.Sprintf("job %d is %s", job.ID, job.State))
		}
		if err := applyMaterialUpdate(material, update, summary); err != nil {
			return err
		}
		return tx.UpdateMaterial(ctx, material)
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(services.WithJobID(ctx, material.JobID), m.logger).Debug("material updated",
		logging.Entity("material", material.ID),
		logging.String("type", string(material.Type)),
		logging.Version(material.Version),
	)
	return material, nil
}

func applyMaterialUpdate(material *store.Material, update MaterialUpdate, summary *metadata.Summary) error {
	typed := func(field string, want profile.MaterialType) error {
		if material.Type != want {
			return validation("update material", fmt.Sprintf("material %d is %s; %s applies to %s", material.ID, material.Type, field, want))
		}
		return nil
	}
	if update.Path != nil {
		if err := typed("path", profile.MaterialFolder); err != nil {
			return err
		}
		material.Path = strings.TrimSpace(*update.Path)
	}
	if update.PID != nil {
		if err := typed("pid", profile.MaterialDigitalObject); err != nil {
			return err
		}
		material.PID = strings.TrimSpace(*update.PID)
	}
	physical := []struct {
		name  string
		value *string
		dest  *string
	}{
		{"barcode", update.Barcode, &material.Barcode},
		{"field001", update.Field001, &material.Field001},
		{"signature", update.Signature, &material.Signature},
	}
	for _, field := range physical {
		if field.value == nil {
			continue
		}
		if err := typed(field.name, profile.MaterialPhysicalDocument); err != nil {
			return err
		}
		*field.dest = strings.TrimSpace(*field.value)
	}
	if summary != nil {
		if err := typed("metadata", profile.MaterialPhysicalDocument); err != nil {
			return err
		}
		material.Metadata = strings.TrimSpace(*update.Metadata)
		if label := summary.Label(); label != "" {
			material.Label = label
		}
	}
	if update.Label != nil {
		material.Label = strings.TrimSpace(*update.Label)
	}
	if update.Note != nil {
		material.Note = *update.Note
	}
	if update.State != nil {
		material.State = strings.TrimSpace(*update.State)
	}
	return nil
}
