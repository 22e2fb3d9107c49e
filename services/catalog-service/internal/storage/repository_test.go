package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestCreateServiceStoresFixedPrice(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("INSERT INTO services").
		WithArgs(pgxmock.AnyArg(), "Corte", "45.50", 30).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	s, err := NewRepository(mock).CreateService(context.Background(), "Corte", decimal.RequireFromString("45.5"), 30)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == "" || !s.Active || !s.CreatedAt.Equal(now) {
		t.Fatalf("unexpected service %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListServicesParsesPrices(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM services").WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price", "duration_minutes", "active", "created_at"}).
			AddRow("a", "Barba", "30.00", 20, true, time.Now()).
			AddRow("b", "Corte", "45.50", 30, true, time.Now()))

	out, err := NewRepository(mock).ListServices(context.Background(), true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || !out[1].Price.Equal(decimal.RequireFromString("45.5")) {
		t.Fatalf("unexpected services %+v", out)
	}
}

func TestListServicesRejectsBadPrice(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM services").WithArgs(false).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price", "duration_minutes", "active", "created_at"}).
			AddRow("a", "Barba", "abc", 20, true, time.Now()))

	if _, err := NewRepository(mock).ListServices(context.Background(), false); err == nil {
		t.Fatal("expected price parse error")
	}
}

func TestSetActiveNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("UPDATE barbers").WithArgs("b1", false).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("UPDATE services").WithArgs("bad", true).WillReturnError(&pgconn.PgError{Code: "22P02"})

	repo := NewRepository(mock)
	if err := repo.SetBarberActive(context.Background(), "b1", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetServiceActive(context.Background(), "bad", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
}
