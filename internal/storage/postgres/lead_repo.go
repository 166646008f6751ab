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

type leadRepo struct {
	db *DB
}

func NewLeadRepository(db *DB) *leadRepo {
	return &leadRepo{db: db}
}

const leadColumns = `id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''), unit_id,
	COALESCE(event_month, ''), COALESCE(day_preference, ''), COALESCE(guest_count, ''),
	status, assignee_id, COALESCE(notes, ''), COALESCE(source, ''), created_at, updated_at`

func scanLead(row pgx.Row) (model.Lead, error) {
	var l model.Lead
	err := row.Scan(
		&l.ID, &l.Name, &l.Phone, &l.Email, &l.UnitID, &l.EventMonth, &l.DayPreference,
		&l.GuestCount, &l.Status, &l.AssigneeID, &l.Notes, &l.Source, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Lead{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Lead{}, err
	}
	return l, nil
}

func (r *leadRepo) Create(ctx context.Context, lead model.Lead) (model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	now := time.Now()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	query := `
		INSERT INTO leads (id, name, phone, email, unit_id, event_month, day_preference, guest_count,
			status, assignee_id, notes, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + leadColumns

	return scanLead(r.db.Pool.QueryRow(ctx, query,
		lead.ID, nullIfEmpty(lead.Name), nullIfEmpty(lead.Phone), nullIfEmpty(lead.Email), lead.UnitID,
		nullIfEmpty(lead.EventMonth), nullIfEmpty(lead.DayPreference), nullIfEmpty(lead.GuestCount),
		string(lead.Status), lead.AssigneeID, nullIfEmpty(lead.Notes), nullIfEmpty(lead.Source),
		lead.CreatedAt, lead.UpdatedAt,
	))
}

func (r *leadRepo) GetByID(ctx context.Context, id string) (model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	return scanLead(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *leadRepo) GetByPhone(ctx context.Context, phone string) (model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone = $1 ORDER BY created_at DESC LIMIT 1`
	return scanLead(r.db.Pool.QueryRow(ctx, query, phone))
}

func (r *leadRepo) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	lead.UpdatedAt = time.Now()

	query := `
		UPDATE leads
		SET name = $2, phone = $3, email = $4, unit_id = $5, event_month = $6, day_preference = $7,
			guest_count = $8, status = $9, assignee_id = $10, notes = $11, updated_at = $12
		WHERE id = $1
		RETURNING ` + leadColumns

	return scanLead(r.db.Pool.QueryRow(ctx, query,
		lead.ID, nullIfEmpty(lead.Name), nullIfEmpty(lead.Phone), nullIfEmpty(lead.Email), lead.UnitID,
		nullIfEmpty(lead.EventMonth), nullIfEmpty(lead.DayPreference), nullIfEmpty(lead.GuestCount),
		string(lead.Status), lead.AssigneeID, nullIfEmpty(lead.Notes), lead.UpdatedAt,
	))
}

func (r *leadRepo) List(ctx context.Context, unitID string, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []interface{}{}
	if unitID != "" {
		query += ` WHERE unit_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, unitID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}

	return leads, rows.Err()
}

type leadHistoryRepo struct {
	db *DB
}

func NewLeadHistoryRepository(db *DB) *leadHistoryRepo {
	return &leadHistoryRepo{db: db}
}

func (r *leadHistoryRepo) Append(ctx context.Context, entry model.LeadHistory) (model.LeadHistory, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO lead_history (id, lead_id, action, old_value, new_value, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		entry.ID, entry.LeadID, entry.Action, nullIfEmpty(entry.OldValue), nullIfEmpty(entry.NewValue),
		entry.Actor, entry.CreatedAt,
	)
	if err != nil {
		return model.LeadHistory{}, err
	}
	return entry, nil
}

func (r *leadHistoryRepo) ListByLead(ctx context.Context, leadID string) ([]model.LeadHistory, error) {
	query := `
		SELECT id, lead_id, action, COALESCE(old_value, ''), COALESCE(new_value, ''), actor, created_at
		FROM lead_history
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LeadHistory
	for rows.Next() {
		var e model.LeadHistory
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Action, &e.OldValue, &e.NewValue, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *leadHistoryRepo) HasAction(ctx context.Context, leadID, action string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM lead_history WHERE lead_id = $1 AND action = $2)`
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, leadID, action).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *leadHistoryRepo) LeadIDsWithActionBetween(ctx context.Context, action, newValue string, from, to time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT lead_id
		FROM lead_history
		WHERE action = $1 AND new_value = $2 AND created_at BETWEEN $3 AND $4
	`

	rows, err := r.db.Pool.Query(ctx, query, action, newValue, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
