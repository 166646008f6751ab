package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type instanceRepo struct {
	db *DB
}

func NewInstanceRepository(db *DB) *instanceRepo {
	return &instanceRepo{db: db}
}

const instanceColumns = `id, name, public_key, unit_id, token_enc, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row rowScanner) (model.Instance, error) {
	var inst model.Instance
	var createdAt, updatedAt string
	err := row.Scan(&inst.ID, &inst.Name, &inst.PublicKey, &inst.UnitID, &inst.TokenEnc, &inst.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Instance{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Instance{}, err
	}
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)
	return inst, nil
}

func (r *instanceRepo) Create(ctx context.Context, inst model.Instance) (model.Instance, error) {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	now := time.Now()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	query := `
		INSERT INTO instances (id, name, public_key, unit_id, token_enc, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Conn.ExecContext(ctx, query,
		inst.ID, inst.Name, inst.PublicKey, inst.UnitID, inst.TokenEnc, string(inst.Status),
		fmtTime(inst.CreatedAt), fmtTime(inst.UpdatedAt),
	)
	if err != nil {
		return model.Instance{}, err
	}
	return inst, nil
}

func (r *instanceRepo) GetByID(ctx context.Context, id string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE id = ?`
	return scanInstance(r.db.Conn.QueryRowContext(ctx, query, id))
}

func (r *instanceRepo) GetByPublicKey(ctx context.Context, publicKey string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE public_key = ?`
	return scanInstance(r.db.Conn.QueryRowContext(ctx, query, publicKey))
}

func (r *instanceRepo) GetConnectedByUnit(ctx context.Context, unitID string) (model.Instance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM instances
		WHERE unit_id = ? AND status = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return scanInstance(r.db.Conn.QueryRowContext(ctx, query, unitID, string(model.InstanceStatusConnected)))
}

func (r *instanceRepo) List(ctx context.Context) ([]model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances ORDER BY created_at DESC`

	rows, err := r.db.Conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}

	return instances, rows.Err()
}

func (r *instanceRepo) Update(ctx context.Context, inst model.Instance) (model.Instance, error) {
	inst.UpdatedAt = time.Now()

	query := `
		UPDATE instances
		SET name = ?, public_key = ?, unit_id = ?, token_enc = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Conn.ExecContext(ctx, query,
		inst.Name, inst.PublicKey, inst.UnitID, inst.TokenEnc, string(inst.Status), fmtTime(inst.UpdatedAt), inst.ID,
	)
	if err != nil {
		return model.Instance{}, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.Instance{}, storage.ErrNotFound
	}
	return inst, nil
}

func (r *instanceRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
