package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mkarimv/vehicle-service-center/internal/model"
)

// PartRepo provides persistence for parts and their stock counters.
//
// Stock mutation during conflict resolution must be serialized per part.
// Callers lock the part row with GetForUpdateTx and then apply the
// decrement with ApplyApprovalTx inside the same transaction; the
// UPDATE's own stock guard is kept as a second line of defence so that
// current_stock can never be driven negative even by a caller that
// forgot the lock.
type PartRepo struct{ DB *sql.DB }

func NewPartRepo(db *sql.DB) *PartRepo { return &PartRepo{DB: db} }

const partCols = `id, part_number, name, current_stock, used_stock, reserved_stock, unit_price_cents, created_at, updated_at`

func scanPart(row interface{ Scan(...any) error }) (*model.Part, error) {
	var p model.Part
	err := row.Scan(&p.ID, &p.PartNumber, &p.Name, &p.CurrentStock, &p.UsedStock,
		&p.ReservedStock, &p.UnitPriceCents, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new part; duplicate part numbers map to ErrConflict.
func (r *PartRepo) Create(ctx context.Context, p *model.Part) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO parts (part_number, name, current_stock, used_stock, reserved_stock, unit_price_cents)
		 VALUES (?,?,?,0,0,?)`,
		p.PartNumber, p.Name, p.CurrentStock, p.UnitPriceCents)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID loads one part; ErrNotFound when absent.
func (r *PartRepo) GetByID(ctx context.Context, id uint64) (*model.Part, error) {
	p, err := scanPart(r.DB.QueryRowContext(ctx, `SELECT `+partCols+` FROM parts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// GetForUpdateTx loads one part under an exclusive row lock.  Every
// stock-affecting decision reads the part this way so that overlapping
// resolutions for the same part serialize on the row lock.
func (r *PartRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Part, error) {
	p, err := scanPart(tx.QueryRowContext(ctx, `SELECT `+partCols+` FROM parts WHERE id = ? FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns all parts ordered by part number.
func (r *PartRepo) List(ctx context.Context) ([]model.Part, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+partCols+` FROM parts ORDER BY part_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Part, 0)
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ApplyApprovalTx consumes stock for one approved demand request:
// current_stock goes down and used_stock up by exactly qty.  The WHERE
// guard refuses to overdraw; zero rows means the live stock could no
// longer cover the quantity and the caller gets ErrConflict.
func (r *PartRepo) ApplyApprovalTx(ctx context.Context, tx *sql.Tx, partID uint64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE parts SET current_stock = current_stock - ?, used_stock = used_stock + ?, updated_at=NOW()
		 WHERE id = ? AND current_stock >= ?`,
		qty, qty, partID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// Restock adds delivered units to current_stock.
func (r *PartRepo) Restock(ctx context.Context, partID uint64, qty int) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE parts SET current_stock = current_stock + ?, updated_at=NOW() WHERE id = ?`,
		qty, partID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
