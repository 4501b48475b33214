package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkarimv/vehicle-service-center/internal/model"
)

// DemandRepo provides the uniform demand view over the two concrete
// request shapes: part lines inside a service reception record and
// standalone part requests.  Resolution code never touches the two
// tables directly — it approves or rejects a model.DemandRequest and
// this repository flips the flag in whichever table owns the row.
type DemandRepo struct{ DB *sql.DB }

func NewDemandRepo(db *sql.DB) *DemandRepo { return &DemandRepo{DB: db} }

// openDemandQuery unions both demand sources for one part, keeping only
// requests that are neither approved nor rejected.  Reception lines take
// their scheduled time from the owning appointment; part requests carry
// their own needed_at.  Ordered by scheduled time then ID so detection
// captures members deterministically.
const openDemandQuery = `
	SELECT 'reception_line' AS source, l.id, rc.appointment_id, l.reception_id,
	       l.part_id, l.quantity, l.priority, a.scheduled_at, l.requested_by
	FROM reception_part_lines l
	JOIN receptions rc ON rc.id = l.reception_id
	JOIN appointments a ON a.id = rc.appointment_id
	WHERE l.part_id = ? AND l.approved = 0 AND l.rejected = 0
	UNION ALL
	SELECT 'part_request', pr.id, pr.appointment_id, NULL,
	       pr.part_id, pr.quantity, pr.priority, pr.needed_at, pr.requested_by
	FROM part_requests pr
	WHERE pr.part_id = ? AND pr.status = 'pending'
	ORDER BY 8, 2`

// OpenDemandByPartTx returns every unapproved, unrejected demand request
// for a part inside the caller's transaction.
func (r *DemandRepo) OpenDemandByPartTx(ctx context.Context, tx *sql.Tx, partID uint64) ([]model.DemandRequest, error) {
	rows, err := tx.QueryContext(ctx, openDemandQuery, partID, partID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.DemandRequest, 0)
	for rows.Next() {
		var (
			d           model.DemandRequest
			receptionID sql.NullInt64
		)
		if err := rows.Scan(&d.Source, &d.SourceID, &d.AppointmentID, &receptionID,
			&d.PartID, &d.Quantity, &d.Priority, &d.ScheduledAt, &d.RequestedBy); err != nil {
			return nil, err
		}
		if receptionID.Valid {
			rid := uint64(receptionID.Int64)
			d.ReceptionID = &rid
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PartsWithOpenDemand lists the distinct parts that currently have any
// open demand, for the detect-all sweep.
func (r *DemandRepo) PartsWithOpenDemand(ctx context.Context) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT DISTINCT part_id FROM reception_part_lines WHERE approved = 0 AND rejected = 0
		UNION
		SELECT DISTINCT part_id FROM part_requests WHERE status = 'pending'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ApproveTx flips the approval flag on the record owning a demand
// request.  Zero matched rows means the request was already decided by
// someone else; that surfaces as ErrConflict so the whole resolution
// rolls back.
func (r *DemandRepo) ApproveTx(ctx context.Context, tx *sql.Tx, source model.DemandSource, sourceID uint64) error {
	var res sql.Result
	var err error
	switch source {
	case model.DemandSourceReceptionLine:
		res, err = tx.ExecContext(ctx,
			`UPDATE reception_part_lines SET approved = 1 WHERE id = ? AND approved = 0 AND rejected = 0`, sourceID)
	case model.DemandSourcePartRequest:
		res, err = tx.ExecContext(ctx,
			`UPDATE part_requests SET status = 'approved' WHERE id = ? AND status = 'pending'`, sourceID)
	default:
		return fmt.Errorf("unknown demand source %q", source)
	}
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// RejectTx marks the owning record rejected.
func (r *DemandRepo) RejectTx(ctx context.Context, tx *sql.Tx, source model.DemandSource, sourceID uint64) error {
	var res sql.Result
	var err error
	switch source {
	case model.DemandSourceReceptionLine:
		res, err = tx.ExecContext(ctx,
			`UPDATE reception_part_lines SET rejected = 1 WHERE id = ? AND approved = 0 AND rejected = 0`, sourceID)
	case model.DemandSourcePartRequest:
		res, err = tx.ExecContext(ctx,
			`UPDATE part_requests SET status = 'rejected' WHERE id = ? AND status = 'pending'`, sourceID)
	default:
		return fmt.Errorf("unknown demand source %q", source)
	}
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// UnapprovedCountForReceptionTx counts the reception's part lines still
// awaiting a decision.  When it drops to zero after an approval, the
// resolver may advance the owning appointment to reception_approved.
func (r *DemandRepo) UnapprovedCountForReceptionTx(ctx context.Context, tx *sql.Tx, receptionID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reception_part_lines WHERE reception_id = ? AND approved = 0 AND rejected = 0`,
		receptionID).Scan(&n)
	return n, err
}

// CreateReceptionTx inserts a reception record and its part lines.
func (r *DemandRepo) CreateReceptionTx(ctx context.Context, tx *sql.Tx, rec *model.Reception, lines []model.ReceptionPartLine) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO receptions (appointment_id, created_by, notes) VALUES (?,?,?)`,
		rec.AppointmentID, rec.CreatedBy, rec.Notes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	for i := range lines {
		lines[i].ReceptionID = rec.ID
		lres, err := tx.ExecContext(ctx,
			`INSERT INTO reception_part_lines (reception_id, part_id, quantity, priority, requested_by)
			 VALUES (?,?,?,?,?)`,
			rec.ID, lines[i].PartID, lines[i].Quantity, lines[i].Priority, lines[i].RequestedBy)
		if err != nil {
			return err
		}
		lid, err := lres.LastInsertId()
		if err != nil {
			return err
		}
		lines[i].ID = uint64(lid)
	}
	return nil
}

// GetReception loads one reception record; ErrNotFound when absent.
func (r *DemandRepo) GetReception(ctx context.Context, id uint64) (*model.Reception, error) {
	var rec model.Reception
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, appointment_id, created_by, notes, created_at FROM receptions WHERE id = ?`,
		id).Scan(&rec.ID, &rec.AppointmentID, &rec.CreatedBy, &rec.Notes, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreatePartRequestTx inserts a standalone part request in pending state.
func (r *DemandRepo) CreatePartRequestTx(ctx context.Context, tx *sql.Tx, pr *model.PartRequest) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO part_requests (appointment_id, part_id, quantity, priority, status, needed_at, requested_by)
		 VALUES (?,?,?,?,'pending',?,?)`,
		pr.AppointmentID, pr.PartID, pr.Quantity, pr.Priority, pr.NeededAt, pr.RequestedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	pr.ID = uint64(id)
	pr.Status = "pending"
	return nil
}

func requireOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}
