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

type userRepo struct {
	db *DB
}

func NewUserRepository(db *DB) *userRepo {
	return &userRepo{db: db}
}

const userColumns = `id, name, email, password_hash, role, created_at`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var createdAt string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, storage.ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()

	query := `
		INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Conn.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, fmtTime(user.CreatedAt),
	)
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.db.Conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.db.Conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER(?)`, email))
}

func (r *userRepo) ListNotifiable(ctx context.Context, unitID string) ([]model.User, error) {
	query := `
		SELECT DISTINCT u.id, u.name, u.email, u.password_hash, u.role, u.created_at
		FROM users u
		LEFT JOIN user_permissions p ON p.user_id = u.id
		WHERE u.role = ? OR p.unit_id = ? OR p.unit_id = ?
		ORDER BY u.created_at ASC
	`

	rows, err := r.db.Conn.QueryContext(ctx, query, model.RoleAdmin, unitID, model.UnitAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (r *userRepo) GrantPermission(ctx context.Context, perm model.UserPermission) error {
	if perm.ID == "" {
		perm.ID = uuid.New().String()
	}
	query := `
		INSERT INTO user_permissions (id, user_id, unit_id)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, unit_id) DO NOTHING
	`
	_, err := r.db.Conn.ExecContext(ctx, query, perm.ID, perm.UserID, perm.UnitID)
	return err
}
