package handler

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/mkarimv/vehicle-service-center/internal/model"
	"github.com/mkarimv/vehicle-service-center/internal/repository"
)

// newConflictNumber generates the human-readable conflict number.
func newConflictNumber() string {
	return "CONF-" + strings.ToUpper(uuid.NewString()[:8])
}

// detectConflictTx checks one part for over-demand inside the caller's
// transaction.  The part row is locked first, so detection serializes
// against resolutions touching the same part.  When total open demand
// exceeds current stock the open aggregate is refreshed (new members
// attached, snapshot updated) or a new one is created; otherwise nil is
// returned and nothing changes.  Re-running detection never duplicates
// an aggregate or a member.
func detectConflictTx(ctx context.Context, tx *sql.Tx, parts *repository.PartRepo, demand *repository.DemandRepo, conflicts *repository.ConflictRepo, partID uint64) (*model.PartConflict, error) {
	part, err := parts.GetForUpdateTx(ctx, tx, partID)
	if err != nil {
		return nil, err
	}
	open, err := demand.OpenDemandByPartTx(ctx, tx, partID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, d := range open {
		total += d.Quantity
	}
	if total <= part.CurrentStock {
		return nil, nil
	}

	existing, err := conflicts.FindOpenByPartTx(ctx, tx, partID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if err := conflicts.AddMissingMembersTx(ctx, tx, existing, open, part.CurrentStock, total); err != nil {
			return nil, err
		}
		return existing, nil
	}

	c := &model.PartConflict{
		ConflictNumber: newConflictNumber(),
		PartID:         partID,
		AvailableStock: part.CurrentStock,
		TotalRequested: total,
		Shortfall:      total - part.CurrentStock,
	}
	if err := conflicts.CreateTx(ctx, tx, c, open); err != nil {
		return nil, err
	}
	return c, nil
}
