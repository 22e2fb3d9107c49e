package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/barbershop/libs/db"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

type BookingRepository struct {
	db db.TxQuerier
}

type IdempotencyRecord struct {
	Key        string
	BookingID  string
	StatusCode int
}

func NewBookingRepository(q db.TxQuerier) *BookingRepository {
	return &BookingRepository{db: q}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// ListActiveByDate returns the pending and confirmed reservations of date.
func (r *BookingRepository) ListActiveByDate(ctx context.Context, date availability.Date) ([]availability.Reservation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), COALESCE(barber_id::text, ''), status
		FROM bookings
		WHERE date = $1::date
			AND status = ANY($2)
		ORDER BY time ASC
	`, date.String(), availability.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Reservation
	for rows.Next() {
		var rawDate, rawTime, staffID, rawStatus string
		if err := rows.Scan(&rawDate, &rawTime, &staffID, &rawStatus); err != nil {
			return nil, err
		}
		res, err := toReservation(rawDate, rawTime, staffID, rawStatus)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// LockSlot takes a transaction-scoped advisory lock on (date, time) so that
// concurrent submissions for the same slot run their check and insert one
// after another. The lock covers every barber of the slot.
func (r *BookingRepository) LockSlot(ctx context.Context, tx pgx.Tx, date availability.Date, t availability.TimeOfDay) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, SlotLockKey(date, t))
	return err
}

func SlotLockKey(date availability.Date, t availability.TimeOfDay) string {
	return "slot:" + date.String() + "T" + t.String()
}

// ActiveExists reports whether a pending or confirmed booking already holds
// (date, time) for staffFilter. An empty filter matches every barber; a
// barber filter also matches bookings made for any barber.
func (r *BookingRepository) ActiveExists(ctx context.Context, q db.Querier, date availability.Date, t availability.TimeOfDay, staffFilter string) (bool, error) {
	if q == nil {
		q = r.db
	}
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM bookings
			WHERE date = $1::date
				AND time = $2::time
				AND status = ANY($4)
				AND ($3::text = '' OR barber_id IS NULL OR barber_id::text = $3::text)
		)
	`, date.String(), t.String(), staffFilter, availability.ActiveStatuses).Scan(&exists)
	return exists, err
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(service_id, barber_id, date, time, client_name, client_phone, client_email, status)
		VALUES ($1, NULLIF($2, '')::uuid, $3::date, $4::time, $5, $6, NULLIF($7, ''), $8)
		RETURNING id::text
	`, b.ServiceID, b.StaffID, b.Date.String(), b.Time.String(), b.ClientName, b.ClientPhone, b.ClientEmail, string(b.Status)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

const bookingColumns = `id::text, service_id::text, COALESCE(barber_id::text, ''), to_char(date, 'YYYY-MM-DD'),
			to_char(time, 'HH24:MI'), client_name, client_phone, COALESCE(client_email, ''), status, created_at, updated_at`

func (r *BookingRepository) GetByID(ctx context.Context, q db.Querier, id string) (model.Booking, error) {
	if q == nil {
		q = r.db
	}
	return scanBooking(q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1::uuid`, id))
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1::uuid FOR UPDATE`, id))
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status availability.Status) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
			updated_at = now()
		WHERE id = $1::uuid
		RETURNING updated_at
	`, id, string(status)).Scan(&updatedAt)
	return updatedAt, err
}

// ListDetailedByDate returns every booking of date, any status, with service
// and barber names, ordered by time.
func (r *BookingRepository) ListDetailedByDate(ctx context.Context, date availability.Date) ([]model.BookingDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id::text, b.service_id::text, COALESCE(b.barber_id::text, ''), to_char(b.date, 'YYYY-MM-DD'),
			to_char(b.time, 'HH24:MI'), b.client_name, b.client_phone, COALESCE(b.client_email, ''), b.status,
			b.created_at, b.updated_at,
			s.name, s.price::text, COALESCE(br.name, '')
		FROM bookings b
		JOIN services s ON s.id = b.service_id
		LEFT JOIN barbers br ON br.id = b.barber_id
		WHERE b.date = $1::date
		ORDER BY b.time ASC, b.created_at ASC
	`, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BookingDetail
	for rows.Next() {
		var (
			d                 model.BookingDetail
			rawDate, rawTime  string
			rawStatus, rawPrc string
		)
		if err := rows.Scan(
			&d.ID,
			&d.ServiceID,
			&d.StaffID,
			&rawDate,
			&rawTime,
			&d.ClientName,
			&d.ClientPhone,
			&d.ClientEmail,
			&rawStatus,
			&d.CreatedAt,
			&d.UpdatedAt,
			&d.ServiceName,
			&rawPrc,
			&d.StaffName,
		); err != nil {
			return nil, err
		}
		if err := fillSchedule(&d.Booking, rawDate, rawTime, rawStatus); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(rawPrc)
		if err != nil {
			return nil, fmt.Errorf("service price %q: %w", rawPrc, err)
		}
		d.ServicePrice = price
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BookingRepository) GetService(ctx context.Context, q db.Querier, id string) (model.ServiceRef, error) {
	var (
		ref      model.ServiceRef
		rawPrice string
	)
	err := q.QueryRow(ctx, `
		SELECT id::text, name, price::text, duration_minutes, active
		FROM services
		WHERE id = $1::uuid
	`, id).Scan(&ref.ID, &ref.Name, &rawPrice, &ref.DurationMinutes, &ref.Active)
	if err != nil {
		return model.ServiceRef{}, err
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return model.ServiceRef{}, fmt.Errorf("service price %q: %w", rawPrice, err)
	}
	ref.Price = price
	return ref, nil
}

func (r *BookingRepository) GetStaff(ctx context.Context, q db.Querier, id string) (model.StaffRef, error) {
	var ref model.StaffRef
	err := q.QueryRow(ctx, `
		SELECT id::text, name, active
		FROM barbers
		WHERE id = $1::uuid
	`, id).Scan(&ref.ID, &ref.Name, &ref.Active)
	return ref, err
}

// LockIdempotencyKey returns the record for key, creating an empty one when
// absent. The row stays locked until tx ends.
func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, bookingID string, statusCode int) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $2::uuid,
			status_code = $3,
			updated_at = now()
		WHERE idempotency_key = $1
	`, key, bookingID, statusCode)
	return err
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := tx.QueryRow(ctx, `
		SELECT idempotency_key, COALESCE(booking_id::text, ''), COALESCE(status_code, 0)
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&rec.Key, &rec.BookingID, &rec.StatusCode)
	return rec, err
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var (
		b                           model.Booking
		rawDate, rawTime, rawStatus string
	)
	if err := row.Scan(
		&b.ID,
		&b.ServiceID,
		&b.StaffID,
		&rawDate,
		&rawTime,
		&b.ClientName,
		&b.ClientPhone,
		&b.ClientEmail,
		&rawStatus,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return model.Booking{}, err
	}
	if err := fillSchedule(&b, rawDate, rawTime, rawStatus); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func fillSchedule(b *model.Booking, rawDate, rawTime, rawStatus string) error {
	res, err := toReservation(rawDate, rawTime, b.StaffID, rawStatus)
	if err != nil {
		return err
	}
	b.Date, b.Time, b.Status = res.Date, res.Time, res.Status
	return nil
}

func toReservation(rawDate, rawTime, staffID, rawStatus string) (availability.Reservation, error) {
	date, err := availability.ParseDate(rawDate)
	if err != nil {
		return availability.Reservation{}, err
	}
	t, err := availability.ParseTimeOfDay(rawTime)
	if err != nil {
		return availability.Reservation{}, err
	}
	status, err := availability.ParseStatus(rawStatus)
	if err != nil {
		return availability.Reservation{}, err
	}
	return availability.Reservation{Date: date, Time: t, StaffID: staffID, Status: status}, nil
}
