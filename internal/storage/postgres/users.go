package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/invoicegen/platform/internal/domain/users"
)

// UserRepository persists users in Postgres.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a postgres-backed user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	BusinessName string    `db:"business_name"`
	Address      string    `db:"address"`
	Phone        string    `db:"phone"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) toDomain() users.User {
	return users.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		BusinessName: r.BusinessName,
		Address:      r.Address,
		Phone:        r.Phone,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const userColumns = `id, email, name, password_hash, business_name, address, phone, created_at, updated_at`

func (r *UserRepository) FindByID(ctx context.Context, id string) (users.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return users.User{}, users.ErrNotFound
	}

	var row userRow
	err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, fmt.Errorf("find user: %w", err)
	}
	return row.toDomain(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (users.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return row.toDomain(), nil
}

func (r *UserRepository) Save(ctx context.Context, user users.User) (users.User, error) {
	now := time.Now().UTC()
	user.Email = strings.ToLower(user.Email)

	if user.ID == "" {
		user.ID = uuid.NewString()
		user.CreatedAt = now
		user.UpdatedAt = now

		const insert = `
            INSERT INTO users (id, email, name, password_hash, business_name, address, phone, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        `
		if _, err := r.db.ExecContext(ctx, insert,
			user.ID,
			user.Email,
			user.Name,
			user.PasswordHash,
			user.BusinessName,
			user.Address,
			user.Phone,
			now,
			now,
		); err != nil {
			if isUniqueViolation(err) {
				return users.User{}, users.ErrEmailExists
			}
			return users.User{}, fmt.Errorf("insert user: %w", err)
		}
		return user, nil
	}

	const update = `
        UPDATE users
           SET email = $2,
               name = $3,
               password_hash = $4,
               business_name = $5,
               address = $6,
               phone = $7,
               updated_at = $8
         WHERE id = $1
        RETURNING created_at
    `
	var created time.Time
	if err := r.db.QueryRowxContext(ctx, update,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.BusinessName,
		user.Address,
		user.Phone,
		now,
	).Scan(&created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		if isUniqueViolation(err) {
			return users.User{}, users.ErrEmailExists
		}
		return users.User{}, fmt.Errorf("update user: %w", err)
	}
	user.CreatedAt = created
	user.UpdatedAt = now
	return user, nil
}

var _ users.Repository = (*UserRepository)(nil)
