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

type leadRepo struct {
	db *DB
}

func NewLeadRepository(db *DB) *leadRepo {
	return &leadRepo{db: db}
}

const leadColumns = `id, name, phone, email, unit_id, event_month, day_preference, guest_count,
	status, assignee_id, notes, source, created_at, updated_at`

func scanLead(row rowScanner) (model.Lead, error) {
	var l model.Lead
	var name, phone, email, eventMonth, dayPref, guests, assigneeID, notes, source sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&l.ID, &name, &phone, &email, &l.UnitID, &eventMonth, &dayPref, &guests,
		&l.Status, &assigneeID, &notes, &source, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lead{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Lead{}, err
	}

	l.Name = name.String
	l.Phone = phone.String
	l.Email = email.String
	l.EventMonth = eventMonth.String
	l.DayPreference = dayPref.String
	l.GuestCount = guests.String
	l.AssigneeID = ps(assigneeID)
	l.Notes = notes.String
	l.Source = source.String
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Conn.ExecContext(ctx, query,
		lead.ID, nsv(lead.Name), nsv(lead.Phone), nsv(lead.Email), lead.UnitID, nsv(lead.EventMonth),
		nsv(lead.DayPreference), nsv(lead.GuestCount), string(lead.Status), ns(lead.AssigneeID),
		nsv(lead.Notes), nsv(lead.Source), fmtTime(lead.CreatedAt), fmtTime(lead.UpdatedAt),
	)
	if err != nil {
		return model.Lead{}, err
	}
	return lead, nil
}

func (r *leadRepo) GetByID(ctx context.Context, id string) (model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = ?`
	return scanLead(r.db.Conn.QueryRowContext(ctx, query, id))
}

func (r *leadRepo) GetByPhone(ctx context.Context, phone string) (model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone = ? ORDER BY created_at DESC LIMIT 1`
	return scanLead(r.db.Conn.QueryRowContext(ctx, query, phone))
}

func (r *leadRepo) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	lead.UpdatedAt = time.Now()

	query := `
		UPDATE leads
		SET name = ?, phone = ?, email = ?, unit_id = ?, event_month = ?, day_preference = ?,
			guest_count = ?, status = ?, assignee_id = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Conn.ExecContext(ctx, query,
		nsv(lead.Name), nsv(lead.Phone), nsv(lead.Email), lead.UnitID, nsv(lead.EventMonth),
		nsv(lead.DayPreference), nsv(lead.GuestCount), string(lead.Status), ns(lead.AssigneeID),
		nsv(lead.Notes), fmtTime(lead.UpdatedAt), lead.ID,
	)
	if err != nil {
		return model.Lead{}, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.Lead{}, storage.ErrNotFound
	}
	return lead, nil
}

func (r *leadRepo) List(ctx context.Context, unitID string, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []interface{}{}
	if unitID != "" {
		query += ` WHERE unit_id = ?`
		args = append(args, unitID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Conn.QueryContext(ctx, query, args...)
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
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Conn.ExecContext(ctx, query,
		entry.ID, entry.LeadID, entry.Action, nsv(entry.OldValue), nsv(entry.NewValue),
		entry.Actor, fmtTime(entry.CreatedAt),
	)
	if err != nil {
		return model.LeadHistory{}, err
	}
	return entry, nil
}

func (r *leadHistoryRepo) ListByLead(ctx context.Context, leadID string) ([]model.LeadHistory, error) {
	query := `
		SELECT id, lead_id, action, old_value, new_value, actor, created_at
		FROM lead_history
		WHERE lead_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.Conn.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LeadHistory
	for rows.Next() {
		var e model.LeadHistory
		var oldValue, newValue sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Action, &oldValue, &newValue, &e.Actor, &createdAt); err != nil {
			return nil, err
		}
		e.OldValue = oldValue.String
		e.NewValue = newValue.String
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *leadHistoryRepo) HasAction(ctx context.Context, leadID, action string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM lead_history WHERE lead_id = ? AND action = ?)`
	var exists bool
	if err := r.db.Conn.QueryRowContext(ctx, query, leadID, action).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *leadHistoryRepo) LeadIDsWithActionBetween(ctx context.Context, action, newValue string, from, to time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT lead_id
		FROM lead_history
		WHERE action = ? AND new_value = ? AND created_at BETWEEN ? AND ?
	`

	rows, err := r.db.Conn.QueryContext(ctx, query, action, newValue, fmtTime(from), fmtTime(to))
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
