package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/barbershop/libs/db"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type UserRepository struct {
	db db.Querier
}

func NewUserRepository(q db.Querier) *UserRepository {
	return &UserRepository{db: q}
}

// CreateIfAbsent inserts user unless the email is taken. It reports whether a
// row was written.
func (r *UserRepository) CreateIfAbsent(ctx context.Context, user User) (bool, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`, user.ID, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.db.QueryRow(ctx, `
		SELECT id::text, email, password_hash, role, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	err := r.db.QueryRow(ctx, `
		SELECT id::text, email, password_hash, role, created_at
		FROM users
		WHERE id = $1::uuid
	`, id).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}
