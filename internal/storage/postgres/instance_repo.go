package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

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

func scanInstance(row pgx.Row) (model.Instance, error) {
	var inst model.Instance
	err := row.Scan(
		&inst.ID, &inst.Name, &inst.PublicKey, &inst.UnitID, &inst.TokenEnc, &inst.Status, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Instance{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Instance{}, err
	}
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + instanceColumns

	return scanInstance(r.db.Pool.QueryRow(ctx, query,
		inst.ID, inst.Name, inst.PublicKey, inst.UnitID, inst.TokenEnc, string(inst.Status), inst.CreatedAt, inst.UpdatedAt,
	))
}

func (r *instanceRepo) GetByID(ctx context.Context, id string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE id = $1`
	return scanInstance(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *instanceRepo) GetByPublicKey(ctx context.Context, publicKey string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE public_key = $1`
	return scanInstance(r.db.Pool.QueryRow(ctx, query, publicKey))
}

func (r *instanceRepo) GetConnectedByUnit(ctx context.Context, unitID string) (model.Instance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM instances
		WHERE unit_id = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return scanInstance(r.db.Pool.QueryRow(ctx, query, unitID, string(model.InstanceStatusConnected)))
}

func (r *instanceRepo) List(ctx context.Context) ([]model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		var inst model.Instance
		if err := rows.Scan(
			&inst.ID, &inst.Name, &inst.PublicKey, &inst.UnitID, &inst.TokenEnc, &inst.Status, &inst.CreatedAt, &inst.UpdatedAt,
		); err != nil {
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
		SET name = $2, public_key = $3, unit_id = $4, token_enc = $5, status = $6, updated_at = $7
		WHERE id = $1
		RETURNING ` + instanceColumns

	return scanInstance(r.db.Pool.QueryRow(ctx, query,
		inst.ID, inst.Name, inst.PublicKey, inst.UnitID, inst.TokenEnc, string(inst.Status), inst.UpdatedAt,
	))
}

func (r *instanceRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
