package sessions

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/robfig/cron/v3"
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

func TestCreateStoresHashOnly(t *testing.T) {
	mock := newMock(t)
	expires := time.Now().Add(time.Hour)
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(pgxmock.AnyArg(), "u1", HashToken("raw-token"), expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if _, err := NewRefreshRepository(mock).Create(context.Background(), "u1", "raw-token", expires); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRevokeOnlyOnce(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("UPDATE refresh_tokens").WithArgs("t1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE refresh_tokens").WithArgs("t1").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRefreshRepository(mock)
	if ok, err := repo.Revoke(context.Background(), "t1"); err != nil || !ok {
		t.Fatalf("first revoke: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.Revoke(context.Background(), "t1"); err != nil || ok {
		t.Fatalf("second revoke must report false: ok=%v err=%v", ok, err)
	}
}

func TestActive(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)
	if !(RefreshToken{ExpiresAt: now.Add(time.Hour)}).Active(now) {
		t.Fatal("expected active token")
	}
	if (RefreshToken{ExpiresAt: now.Add(-time.Second)}).Active(now) {
		t.Fatal("expired token must not be active")
	}
	if (RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}).Active(now) {
		t.Fatal("revoked token must not be active")
	}
}

func TestPrunerUsesRetentionCutoff(t *testing.T) {
	mock := newMock(t)
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs(now.Add(-24 * time.Hour)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	p := NewPruner(NewRefreshRepository(mock), 24*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return now }
	n, err := p.Prune(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("prune: n=%d err=%v", n, err)
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	p := NewPruner(nil, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := cron.New()
	if _, err := p.Schedule(context.Background(), c, "every so often"); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if _, err := p.Schedule(context.Background(), c, "@hourly"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Fatalf("expected one entry, got %d", len(c.Entries()))
	}
}
