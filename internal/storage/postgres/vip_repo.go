package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type vipNumberRepo struct {
	db *DB
}

func NewVipNumberRepository(db *DB) *vipNumberRepo {
	return &vipNumberRepo{db: db}
}

func (r *vipNumberRepo) Add(ctx context.Context, vip model.VipNumber) (model.VipNumber, error) {
	if vip.ID == "" {
		vip.ID = uuid.New().String()
	}
	vip.CreatedAt = time.Now()

	query := `
		INSERT INTO vip_numbers (id, instance_id, phone, label, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instance_id, phone) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query, vip.ID, vip.InstanceID, vip.Phone, nullIfEmpty(vip.Label), vip.CreatedAt)
	if err != nil {
		return model.VipNumber{}, err
	}
	return vip, nil
}

func (r *vipNumberRepo) Remove(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM vip_numbers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *vipNumberRepo) ListByInstance(ctx context.Context, instanceID string) ([]model.VipNumber, error) {
	query := `
		SELECT id, instance_id, phone, COALESCE(label, ''), created_at
		FROM vip_numbers
		WHERE instance_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vips []model.VipNumber
	for rows.Next() {
		var v model.VipNumber
		if err := rows.Scan(&v.ID, &v.InstanceID, &v.Phone, &v.Label, &v.CreatedAt); err != nil {
			return nil, err
		}
		vips = append(vips, v)
	}

	return vips, rows.Err()
}

func (r *vipNumberRepo) Exists(ctx context.Context, instanceID, phone string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM vip_numbers WHERE instance_id = $1 AND phone = $2)`
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, instanceID, phone).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
