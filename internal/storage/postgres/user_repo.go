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

type userRepo struct {
	db *DB
}

func NewUserRepository(db *DB) *userRepo {
	return &userRepo{db: db}
}

const userColumns = `id, name, email, password_hash, role, created_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, storage.ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()

	query := `
		INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	return scanUser(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt,
	))
}

func (r *userRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

// ListNotifiable reúne os destinatários de fan-out: permissão na unidade,
// permissão global ou papel de administrador.
func (r *userRepo) ListNotifiable(ctx context.Context, unitID string) ([]model.User, error) {
	query := `
		SELECT DISTINCT u.id, u.name, u.email, u.password_hash, u.role, u.created_at
		FROM users u
		LEFT JOIN user_permissions p ON p.user_id = u.id
		WHERE u.role = $1 OR p.unit_id = $2 OR p.unit_id = $3
		ORDER BY u.created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, model.RoleAdmin, unitID, model.UnitAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
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
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, unit_id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query, perm.ID, perm.UserID, perm.UnitID)
	return err
}
