package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/barbershop/libs/db"
	"github.com/md-rashed-zaman/barbershop/libs/whatsapp"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/storage"
)

type Options struct {
	Config       availability.Config
	Location     *time.Location
	StoreTimeout time.Duration
	CountryCode  string
	Metrics      *metrics.BookingMetrics
	Logger       *slog.Logger
	Now          func() time.Time
}

type Service struct {
	repo         *storage.BookingRepository
	outbox       *outbox.Repository
	cfg          availability.Config
	loc          *time.Location
	storeTimeout time.Duration
	countryCode  string
	metrics      *metrics.BookingMetrics
	logger       *slog.Logger
	now          func() time.Time
}

// NewService applies defaults for unset options. A zero Config means the
// default business hours; any other Config must validate.
func NewService(repo *storage.BookingRepository, outboxRepo *outbox.Repository, opts Options) (*Service, error) {
	if opts.Config == (availability.Config{}) {
		opts.Config = availability.DefaultConfig()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("booking config: %w", err)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}
	if opts.CountryCode == "" {
		opts.CountryCode = whatsapp.DefaultCountryCode
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:         repo,
		outbox:       outboxRepo,
		cfg:          opts.Config,
		loc:          opts.Location,
		storeTimeout: opts.StoreTimeout,
		countryCode:  opts.CountryCode,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Now,
	}, nil
}

// localNow is the current instant in the shop's time zone; "today" and
// "past" are always judged there.
func (s *Service) localNow() time.Time {
	return s.now().In(s.loc)
}

// SlotsResult is the availability of one day for one staff filter.
type SlotsResult struct {
	Date    availability.Date
	StaffID string
	Slots   []availability.Slot
}

// Slots computes the slot grid of dateStr as seen by staffID (empty: any
// barber). When reservations cannot be read it returns
// ErrAvailabilityUnknown and no slots.
func (s *Service) Slots(ctx context.Context, dateStr, staffID string) (SlotsResult, error) {
	now := s.localNow()
	date, err := availability.ParseDate(dateStr)
	if err != nil {
		s.metrics.ObserveAvailability(metrics.OutcomeValidation)
		return SlotsResult{}, invalid("date", err.Error())
	}
	staffID = strings.TrimSpace(staffID)
	if err := validateOptionalUUID("barber_id", staffID); err != nil {
		s.metrics.ObserveAvailability(metrics.OutcomeValidation)
		return SlotsResult{}, err
	}
	if date.Compare(availability.DateOf(now)) < 0 {
		s.metrics.ObserveAvailability(metrics.OutcomeValidation)
		return SlotsResult{}, invalid("date", "date is in the past")
	}

	reservations, err := s.fetchReservations(ctx, date)
	if err != nil {
		s.metrics.ObserveAvailability(metrics.OutcomeFetchFailure)
		s.logger.Warn("reservation fetch failed", "date", date.String(), "outcome", metrics.OutcomeFetchFailure, "err", err)
		return SlotsResult{}, fmt.Errorf("%w: %w", ErrAvailabilityUnknown, err)
	}

	slots := availability.ComputeSlots(availability.Query{Date: date, StaffID: staffID, Now: now}, reservations, s.cfg)
	s.metrics.ObserveAvailability(metrics.OutcomeOK)
	return SlotsResult{Date: date, StaffID: staffID, Slots: slots}, nil
}

func (s *Service) fetchReservations(ctx context.Context, date availability.Date) ([]availability.Reservation, error) {
	ctx, cancel := db.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	start := time.Now()
	defer func() { s.metrics.ObserveStoreLatency("list_active", time.Since(start).Seconds()) }()
	return s.repo.ListActiveByDate(ctx, date)
}

// ConfirmSlotFree re-reads the store and reports whether (date, t) is still
// free for staffID. It is the last check before a booking is written.
func (s *Service) ConfirmSlotFree(ctx context.Context, date availability.Date, t availability.TimeOfDay, staffID string) (bool, error) {
	ctx, cancel := db.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.confirmSlotFree(ctx, nil, date, t, staffID)
}

func (s *Service) confirmSlotFree(ctx context.Context, q db.Querier, date availability.Date, t availability.TimeOfDay, staffID string) (bool, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveStoreLatency("guard", time.Since(start).Seconds()) }()
	taken, err := s.repo.ActiveExists(ctx, q, date, t, staffID)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

type BookRequest struct {
	ServiceID      string `json:"service_id"`
	StaffID        string `json:"barber_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`
	ClientEmail    string `json:"client_email"`
	IdempotencyKey string `json:"-"`
}

type BookResult struct {
	Booking  model.Booking
	Replayed bool
}

// Book validates req and writes a pending booking. Inside one transaction
// it locks the slot, re-checks it is free and inserts, so two clients can
// never both hold the same slot.
func (s *Service) Book(ctx context.Context, req BookRequest) (BookResult, error) {
	b, err := s.validateBooking(req)
	if err != nil {
		s.metrics.ObserveSubmission(metrics.OutcomeValidation)
		return BookResult{}, err
	}

	ctx, cancel := db.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	res, outcome, err := s.book(ctx, b, strings.TrimSpace(req.IdempotencyKey))
	s.metrics.ObserveSubmission(outcome)
	switch outcome {
	case metrics.OutcomeInsertFailure:
		s.logger.Error("booking insert failed", "date", b.Date.String(), "time", b.Time.String(), "outcome", outcome, "err", err)
	case metrics.OutcomeRaceLost, metrics.OutcomeConflict:
		s.logger.Info("booking slot taken", "date", b.Date.String(), "time", b.Time.String(), "barber_id", b.StaffID, "outcome", outcome)
	}
	return res, err
}

func (s *Service) book(ctx context.Context, b model.Booking, idemKey string) (BookResult, string, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idemKey != "" {
		rec, exists, err := s.repo.LockIdempotencyKey(ctx, tx, idemKey)
		if err != nil {
			return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
		}
		if exists && rec.BookingID != "" {
			prior, err := s.repo.GetByID(ctx, tx, rec.BookingID)
			if err != nil {
				return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
			}
			return BookResult{Booking: prior, Replayed: true}, metrics.OutcomeReplayed, nil
		}
	}

	svc, err := s.repo.GetService(ctx, tx, b.ServiceID)
	if err != nil {
		if db.IsNotFound(err) {
			return BookResult{}, metrics.OutcomeValidation, invalid("service_id", "unknown service")
		}
		return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	if !svc.Active {
		return BookResult{}, metrics.OutcomeValidation, invalid("service_id", "service is not offered")
	}
	if b.StaffID != "" {
		staff, err := s.repo.GetStaff(ctx, tx, b.StaffID)
		if err != nil {
			if db.IsNotFound(err) {
				return BookResult{}, metrics.OutcomeValidation, invalid("barber_id", "unknown barber")
			}
			return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
		}
		if !staff.Active {
			return BookResult{}, metrics.OutcomeValidation, invalid("barber_id", "barber is not available")
		}
	}

	if err := s.repo.LockSlot(ctx, tx, b.Date, b.Time); err != nil {
		return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	free, err := s.confirmSlotFree(ctx, tx, b.Date, b.Time, b.StaffID)
	if err != nil {
		return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	if !free {
		return BookResult{}, metrics.OutcomeConflict, ErrSlotTaken
	}

	id, err := s.repo.Create(ctx, tx, &b)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return BookResult{}, metrics.OutcomeRaceLost, fmt.Errorf("%w: %w", ErrInsertFailed, ErrSlotTaken)
		}
		return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	b.ID = id

	if err := s.writeEvent(ctx, tx, outbox.EventBookingCreated, b, svc.Name, ""); err != nil {
		return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	if idemKey != "" {
		if err := s.repo.FinalizeIdempotency(ctx, tx, idemKey, id, 201); err != nil {
			return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		if db.IsUniqueViolation(err) {
			return BookResult{}, metrics.OutcomeRaceLost, fmt.Errorf("%w: %w", ErrInsertFailed, ErrSlotTaken)
		}
		return BookResult{}, metrics.OutcomeInsertFailure, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	return BookResult{Booking: b}, metrics.OutcomeCreated, nil
}

func (s *Service) validateBooking(req BookRequest) (model.Booking, error) {
	b := model.Booking{
		ServiceID:   strings.TrimSpace(req.ServiceID),
		StaffID:     strings.TrimSpace(req.StaffID),
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
		ClientEmail: strings.TrimSpace(req.ClientEmail),
		Status:      availability.StatusPending,
	}

	switch {
	case b.ServiceID == "":
		return model.Booking{}, invalid("service_id", "required")
	case strings.TrimSpace(req.Date) == "":
		return model.Booking{}, invalid("date", "required")
	case strings.TrimSpace(req.Time) == "":
		return model.Booking{}, invalid("time", "required")
	case b.ClientName == "":
		return model.Booking{}, invalid("client_name", "required")
	case b.ClientPhone == "":
		return model.Booking{}, invalid("client_phone", "required")
	}
	if _, err := uuid.Parse(b.ServiceID); err != nil {
		return model.Booking{}, invalid("service_id", "must be a uuid")
	}
	if err := validateOptionalUUID("barber_id", b.StaffID); err != nil {
		return model.Booking{}, err
	}
	if len(b.ClientName) > 120 {
		return model.Booking{}, invalid("client_name", "too long")
	}
	if n := len(whatsapp.NormalizePhone(b.ClientPhone, "")); n < 8 || n > 15 {
		return model.Booking{}, invalid("client_phone", "must have between 8 and 15 digits")
	}
	if b.ClientEmail != "" {
		if _, err := mail.ParseAddress(b.ClientEmail); err != nil {
			return model.Booking{}, invalid("client_email", "invalid address")
		}
	}

	date, err := availability.ParseDate(req.Date)
	if err != nil {
		return model.Booking{}, invalid("date", err.Error())
	}
	t, err := availability.ParseTimeOfDay(req.Time)
	if err != nil {
		return model.Booking{}, invalid("time", err.Error())
	}
	if !s.cfg.Contains(t) {
		return model.Booking{}, invalid("time", fmt.Sprintf("must be a slot between %02d:00 and %02d:00 every %d minutes",
			s.cfg.OpenHour, s.cfg.CloseHour, s.cfg.IntervalMinutes))
	}
	now := s.localNow()
	if c := date.Compare(availability.DateOf(now)); c < 0 || (c == 0 && availability.IsPast(date, t, now)) {
		return model.Booking{}, invalid("time", "slot has already started")
	}
	b.Date, b.Time = date, t
	return b, nil
}

// StatusChange reports the outcome of an admin status update. WhatsAppLink is
// set when the booking became confirmed.
type StatusChange struct {
	Booking      model.Booking
	Changed      bool
	WhatsAppLink string
}

// UpdateStatus moves a booking to confirmed or cancelled. Re-applying the
// current status is a no-op; a cancelled booking stays cancelled.
func (s *Service) UpdateStatus(ctx context.Context, id string, target availability.Status) (StatusChange, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return StatusChange{}, invalid("id", "must be a uuid")
	}
	if target != availability.StatusConfirmed && target != availability.StatusCancelled {
		return StatusChange{}, invalid("status", "must be confirmed or cancelled")
	}

	ctx, cancel := db.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return StatusChange{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return StatusChange{}, ErrNotFound
		}
		return StatusChange{}, err
	}

	if b.Status == target {
		return StatusChange{Booking: b, WhatsAppLink: s.ConfirmationLink(b)}, nil
	}
	if b.Status == availability.StatusCancelled {
		return StatusChange{}, fmt.Errorf("%w: booking is cancelled", ErrInvalidTransition)
	}

	previous := b.Status
	updatedAt, err := s.repo.UpdateStatus(ctx, tx, id, target)
	if err != nil {
		return StatusChange{}, err
	}
	b.Status, b.UpdatedAt = target, updatedAt

	if err := s.writeEvent(ctx, tx, outbox.EventBookingStatusChanged, b, "", previous); err != nil {
		return StatusChange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return StatusChange{}, err
	}
	s.metrics.ObserveStatusChange(string(target))
	s.logger.Info("booking status changed", "booking_id", id, "from", string(previous), "to", string(target))
	return StatusChange{Booking: b, Changed: true, WhatsAppLink: s.ConfirmationLink(b)}, nil
}

// ConfirmationLink is the WhatsApp link that tells the client the booking is
// confirmed, or "" for any other status.
func (s *Service) ConfirmationLink(b model.Booking) string {
	if b.Status != availability.StatusConfirmed {
		return ""
	}
	return whatsapp.Link(b.ClientPhone, s.countryCode, whatsapp.ConfirmationMessage)
}

// ListDay returns every booking of dateStr with catalog names, ordered by time.
func (s *Service) ListDay(ctx context.Context, dateStr string) ([]model.BookingDetail, error) {
	date, err := availability.ParseDate(dateStr)
	if err != nil {
		return nil, invalid("date", err.Error())
	}
	ctx, cancel := db.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.repo.ListDetailedByDate(ctx, date)
}

func (s *Service) writeEvent(ctx context.Context, tx pgx.Tx, eventType string, b model.Booking, serviceName string, previous availability.Status) error {
	payload, err := json.Marshal(outbox.BookingPayload{
		BookingID:      b.ID,
		Status:         string(b.Status),
		PreviousStatus: string(previous),
		Date:           b.Date.String(),
		Time:           b.Time.String(),
		ServiceID:      b.ServiceID,
		ServiceName:    serviceName,
		BarberID:       b.StaffID,
		ClientName:     b.ClientName,
		ClientPhone:    b.ClientPhone,
		ClientEmail:    b.ClientEmail,
		OccurredAt:     s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func validateOptionalUUID(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := uuid.Parse(v); err != nil {
		return invalid(field, "must be a uuid")
	}
	return nil
}
