package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkarimv/vehicle-service-center/internal/model"
)

// ConflictRepo persists conflict aggregates and their member requests.
type ConflictRepo struct{ DB *sql.DB }

func NewConflictRepo(db *sql.DB) *ConflictRepo { return &ConflictRepo{DB: db} }

const conflictCols = `id, conflict_number, part_id, available_stock, total_requested, shortfall,
	status, resolved_by, resolved_at, resolution_notes, created_at`

func scanConflict(row interface{ Scan(...any) error }) (*model.PartConflict, error) {
	var (
		c          model.PartConflict
		resolvedBy sql.NullInt64
		resolvedAt sql.NullTime
		notes      sql.NullString
	)
	err := row.Scan(&c.ID, &c.ConflictNumber, &c.PartID, &c.AvailableStock, &c.TotalRequested,
		&c.Shortfall, &c.Status, &resolvedBy, &resolvedAt, &notes, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if resolvedBy.Valid {
		v := uint64(resolvedBy.Int64)
		c.ResolvedBy = &v
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	c.ResolutionNotes = notes.String
	return &c, nil
}

// FindOpenByPartTx returns the pending conflict for a part, locked, or
// ErrNotFound when none is open.  Detection uses this to refresh an
// existing aggregate instead of opening a second one for the same part.
func (r *ConflictRepo) FindOpenByPartTx(ctx context.Context, tx *sql.Tx, partID uint64) (*model.PartConflict, error) {
	c, err := scanConflict(tx.QueryRowContext(ctx,
		`SELECT `+conflictCols+` FROM part_conflicts WHERE part_id = ? AND status = 'PENDING' LIMIT 1 FOR UPDATE`,
		partID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Requests, err = r.requestsTx(ctx, tx, c.ID)
	return c, err
}

// CreateTx inserts a new pending aggregate with its member requests.
func (r *ConflictRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.PartConflict, demand []model.DemandRequest) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO part_conflicts (conflict_number, part_id, available_stock, total_requested, shortfall, status)
		 VALUES (?,?,?,?,?,'PENDING')`,
		c.ConflictNumber, c.PartID, c.AvailableStock, c.TotalRequested, c.Shortfall)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.Status = model.ConflictPending
	for _, d := range demand {
		if err := r.insertRequestTx(ctx, tx, c.ID, d); err != nil {
			return err
		}
	}
	c.Requests, err = r.requestsTx(ctx, tx, c.ID)
	return err
}

// AddMissingMembersTx attaches any open demand request not yet captured
// by the aggregate and refreshes its stock snapshot.  Re-running
// detection is idempotent: already-captured requests are left alone.
func (r *ConflictRepo) AddMissingMembersTx(ctx context.Context, tx *sql.Tx, c *model.PartConflict, demand []model.DemandRequest, availableStock, totalRequested int) error {
	existing := make(map[string]bool, len(c.Requests))
	for _, cr := range c.Requests {
		existing[fmt.Sprintf("%s#%d", cr.Source, cr.SourceID)] = true
	}
	for _, d := range demand {
		if existing[fmt.Sprintf("%s#%d", d.Source, d.SourceID)] {
			continue
		}
		if err := r.insertRequestTx(ctx, tx, c.ID, d); err != nil {
			return err
		}
	}
	shortfall := totalRequested - availableStock
	if shortfall < 0 {
		shortfall = 0
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE part_conflicts SET available_stock=?, total_requested=?, shortfall=? WHERE id = ?`,
		availableStock, totalRequested, shortfall, c.ID)
	if err != nil {
		return err
	}
	c.AvailableStock = availableStock
	c.TotalRequested = totalRequested
	c.Shortfall = shortfall
	c.Requests, err = r.requestsTx(ctx, tx, c.ID)
	return err
}

func (r *ConflictRepo) insertRequestTx(ctx context.Context, tx *sql.Tx, conflictID uint64, d model.DemandRequest) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO conflict_requests (conflict_id, source, source_id, appointment_id, quantity, priority, scheduled_at, status)
		 VALUES (?,?,?,?,?,?,?,'pending')`,
		conflictID, d.Source, d.SourceID, d.AppointmentID, d.Quantity, d.Priority, d.ScheduledAt)
	return err
}

const requestCols = `id, conflict_id, source, source_id, appointment_id, quantity, priority,
	scheduled_at, status, outcome, note, created_at`

func scanRequests(rows *sql.Rows) ([]model.ConflictRequest, error) {
	out := make([]model.ConflictRequest, 0)
	for rows.Next() {
		var (
			cr      model.ConflictRequest
			outcome sql.NullString
			note    sql.NullString
		)
		if err := rows.Scan(&cr.ID, &cr.ConflictID, &cr.Source, &cr.SourceID, &cr.AppointmentID,
			&cr.Quantity, &cr.Priority, &cr.ScheduledAt, &cr.Status, &outcome, &note, &cr.CreatedAt); err != nil {
			return nil, err
		}
		cr.Outcome = model.ResolutionOutcome(outcome.String)
		cr.Note = note.String
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *ConflictRepo) requestsTx(ctx context.Context, tx *sql.Tx, conflictID uint64) ([]model.ConflictRequest, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+requestCols+` FROM conflict_requests WHERE conflict_id = ? ORDER BY id`, conflictID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// GetByID loads one aggregate with its member requests; ErrNotFound when
// absent.
func (r *ConflictRepo) GetByID(ctx context.Context, id uint64) (*model.PartConflict, error) {
	c, err := scanConflict(r.DB.QueryRowContext(ctx,
		`SELECT `+conflictCols+` FROM part_conflicts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+requestCols+` FROM conflict_requests WHERE conflict_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	c.Requests, err = scanRequests(rows)
	return c, err
}

// GetForUpdateTx loads one aggregate under an exclusive row lock so that
// concurrent resolutions of the same conflict serialize.
func (r *ConflictRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.PartConflict, error) {
	c, err := scanConflict(tx.QueryRowContext(ctx,
		`SELECT `+conflictCols+` FROM part_conflicts WHERE id = ? FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Requests, err = r.requestsTx(ctx, tx, c.ID)
	return c, err
}

// MarkRequestTx records the decision for one member request.  The
// status guard makes each member decidable exactly once.
func (r *ConflictRepo) MarkRequestTx(ctx context.Context, tx *sql.Tx, requestID uint64, status model.ConflictRequestStatus, outcome model.ResolutionOutcome, note string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE conflict_requests SET status=?, outcome=?, note=? WHERE id = ? AND status = 'pending'`,
		status, outcome, note, requestID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// PendingCountTx counts member requests still awaiting a decision.
func (r *ConflictRepo) PendingCountTx(ctx context.Context, tx *sql.Tx, conflictID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conflict_requests WHERE conflict_id = ? AND status = 'pending'`,
		conflictID).Scan(&n)
	return n, err
}

// MarkResolvedTx closes the aggregate.  Guarded on PENDING so a
// concurrent resolver that lost the race gets ErrConflict.
func (r *ConflictRepo) MarkResolvedTx(ctx context.Context, tx *sql.Tx, conflictID, resolvedBy uint64, notes string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE part_conflicts SET status='RESOLVED', resolved_by=?, resolved_at=?, resolution_notes=?
		 WHERE id = ? AND status = 'PENDING'`,
		resolvedBy, time.Now().UTC(), notes, conflictID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// List returns conflict aggregates, optionally filtered by status, most
// recent first.  Member requests are included.
func (r *ConflictRepo) List(ctx context.Context, status model.ConflictStatus) ([]model.PartConflict, error) {
	q := `SELECT ` + conflictCols + ` FROM part_conflicts`
	args := []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY id DESC`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PartConflict, 0)
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		rrows, err := r.DB.QueryContext(ctx,
			`SELECT `+requestCols+` FROM conflict_requests WHERE conflict_id = ? ORDER BY id`, out[i].ID)
		if err != nil {
			return nil, err
		}
		reqs, err := scanRequests(rrows)
		rrows.Close()
		if err != nil {
			return nil, err
		}
		out[i].Requests = reqs
	}
	return out, nil
}

