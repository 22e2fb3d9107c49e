package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/barbershop/libs/db"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

type Service struct {
	ID              string
	Name            string
	Price           decimal.Decimal
	DurationMinutes int
	Active          bool
	CreatedAt       time.Time
}

type Barber struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
}

func (r *Repository) CreateService(ctx context.Context, name string, price decimal.Decimal, durationMinutes int) (Service, error) {
	s := Service{
		ID:              uuid.NewString(),
		Name:            name,
		Price:           price,
		DurationMinutes: durationMinutes,
		Active:          true,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO services (id, name, price, duration_minutes, active)
		VALUES ($1, $2, $3::numeric, $4, true)
		RETURNING created_at
	`, s.ID, s.Name, price.StringFixed(2), s.DurationMinutes).Scan(&s.CreatedAt)
	if err != nil {
		return Service{}, err
	}
	return s, nil
}

// ListServices returns services ordered by name; activeOnly hides disabled ones.
func (r *Repository) ListServices(ctx context.Context, activeOnly bool) ([]Service, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, name, price::text, duration_minutes, active, created_at
		FROM services
		WHERE active OR NOT $1
		ORDER BY name ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var (
			s        Service
			rawPrice string
		)
		if err := rows.Scan(&s.ID, &s.Name, &rawPrice, &s.DurationMinutes, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		if s.Price, err = decimal.NewFromString(rawPrice); err != nil {
			return nil, fmt.Errorf("service %s price %q: %w", s.ID, rawPrice, err)
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) SetServiceActive(ctx context.Context, id string, active bool) error {
	return r.setActive(ctx, `UPDATE services SET active = $2, updated_at = now() WHERE id = $1::uuid`, id, active)
}

func (r *Repository) CreateBarber(ctx context.Context, name string) (Barber, error) {
	b := Barber{ID: uuid.NewString(), Name: name, Active: true}
	err := r.db.QueryRow(ctx, `
		INSERT INTO barbers (id, name, active)
		VALUES ($1, $2, true)
		RETURNING created_at
	`, b.ID, b.Name).Scan(&b.CreatedAt)
	if err != nil {
		return Barber{}, err
	}
	return b, nil
}

func (r *Repository) ListBarbers(ctx context.Context, activeOnly bool) ([]Barber, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, name, active, created_at
		FROM barbers
		WHERE active OR NOT $1
		ORDER BY name ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Barber
	for rows.Next() {
		var b Barber
		if err := rows.Scan(&b.ID, &b.Name, &b.Active, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) SetBarberActive(ctx context.Context, id string, active bool) error {
	return r.setActive(ctx, `UPDATE barbers SET active = $2, updated_at = now() WHERE id = $1::uuid`, id, active)
}

func (r *Repository) setActive(ctx context.Context, sql, id string, active bool) error {
	tag, err := r.db.Exec(ctx, sql, id, active)
	if err != nil {
		if db.IsInvalidInput(err) {
			return ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
