package availability

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return v
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputeSlots_Cardinality(t *testing.T) {
	cases := []Config{
		DefaultConfig(),
		{OpenHour: 9, CloseHour: 18, IntervalMinutes: 15},
		{OpenHour: 0, CloseHour: 24, IntervalMinutes: 60},
	}
	q := Query{Date: mustDate(t, "2026-03-10"), Now: at("2026-03-01 12:00")}
	for _, cfg := range cases {
		if err := cfg.Validate(); err != nil {
			t.Fatalf("config %+v invalid: %v", cfg, err)
		}
		slots := ComputeSlots(q, nil, cfg)
		want := (cfg.CloseHour - cfg.OpenHour) * 60 / cfg.IntervalMinutes
		if len(slots) != want {
			t.Fatalf("config %+v: expected %d slots, got %d", cfg, want, len(slots))
		}
		for i := 1; i < len(slots); i++ {
			if slots[i].Start <= slots[i-1].Start {
				t.Fatalf("slots not strictly ascending at %d: %v then %v", i, slots[i-1].Start, slots[i].Start)
			}
		}
		if slots[0].Start != TimeOfDay(cfg.OpenHour*60) {
			t.Fatalf("first slot should be opening time, got %v", slots[0].Start)
		}
		if last := slots[len(slots)-1].Start; int(last)+cfg.IntervalMinutes != cfg.CloseHour*60 {
			t.Fatalf("last slot should end at closing time, got %v", last)
		}
	}
}

func TestComputeSlots_DefaultGrid(t *testing.T) {
	slots := ComputeSlots(Query{Date: mustDate(t, "2026-03-10"), Now: at("2026-03-01 12:00")}, nil, DefaultConfig())
	if len(slots) != 24 {
		t.Fatalf("expected 24 slots, got %d", len(slots))
	}
	if slots[0].Start.String() != "08:00" || slots[23].Start.String() != "19:30" {
		t.Fatalf("unexpected bounds %s..%s", slots[0].Start, slots[23].Start)
	}
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("future day with no reservations: %s should be available", s.Start)
		}
	}
}

func TestComputeSlots_StartTimesIndependentOfData(t *testing.T) {
	cfg := DefaultConfig()
	d := mustDate(t, "2026-03-10")
	empty := ComputeSlots(Query{Date: d, Now: at("2026-03-01 12:00")}, nil, cfg)
	busy := ComputeSlots(Query{Date: d, StaffID: "A", Now: at("2026-03-10 13:00")}, []Reservation{
		{Date: d, Time: mustTime(t, "08:00"), StaffID: "A", Status: StatusConfirmed},
		{Date: d, Time: mustTime(t, "19:30"), Status: StatusPending},
	}, cfg)
	if len(empty) != len(busy) {
		t.Fatalf("cardinality changed with data: %d vs %d", len(empty), len(busy))
	}
	for i := range empty {
		if empty[i].Start != busy[i].Start {
			t.Fatalf("start time %d changed with data", i)
		}
	}
}

func TestComputeSlots_StatusOccupancy(t *testing.T) {
	d := mustDate(t, "2026-03-10")
	now := at("2026-03-01 12:00")
	slot := mustTime(t, "10:00")

	for _, tc := range []struct {
		status    Status
		available bool
	}{
		{StatusPending, false},
		{StatusConfirmed, false},
		{StatusCancelled, true},
	} {
		slots := ComputeSlots(Query{Date: d, Now: now}, []Reservation{{Date: d, Time: slot, StaffID: "A", Status: tc.status}}, DefaultConfig())
		if got := findSlot(t, slots, slot).Available; got != tc.available {
			t.Fatalf("status %s: expected available=%v, got %v", tc.status, tc.available, got)
		}
	}
}

func TestComputeSlots_OtherDatesIgnored(t *testing.T) {
	d := mustDate(t, "2026-03-10")
	slot := mustTime(t, "10:00")
	res := []Reservation{{Date: mustDate(t, "2026-03-11"), Time: slot, Status: StatusConfirmed}}
	slots := ComputeSlots(Query{Date: d, Now: at("2026-03-01 12:00")}, res, DefaultConfig())
	if !findSlot(t, slots, slot).Available {
		t.Fatalf("reservation on another date must not occupy")
	}
}

func TestComputeSlots_FutureDateHasNoPastSlots(t *testing.T) {
	now := at("2026-03-10 23:59")
	slots := ComputeSlots(Query{Date: mustDate(t, "2026-03-11"), Now: now}, nil, DefaultConfig())
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("slot %s on a future date should not be past", s.Start)
		}
	}
}

func TestComputeSlots_SlotAtNowIsPast(t *testing.T) {
	d := mustDate(t, "2026-03-10")
	slots := ComputeSlots(Query{Date: d, Now: at("2026-03-10 10:00")}, nil, DefaultConfig())
	if findSlot(t, slots, mustTime(t, "10:00")).Available {
		t.Fatalf("slot starting exactly now must be past")
	}
	if !findSlot(t, slots, mustTime(t, "10:30")).Available {
		t.Fatalf("next slot must be available")
	}

	// seconds do not matter: 10:00:45 still blocks 10:00 and not 10:30
	slots = ComputeSlots(Query{Date: d, Now: at("2026-03-10 10:00").Add(45 * time.Second)}, nil, DefaultConfig())
	if findSlot(t, slots, mustTime(t, "10:00")).Available || !findSlot(t, slots, mustTime(t, "10:30")).Available {
		t.Fatalf("unexpected availability around now with seconds")
	}
}

func TestComputeSlots_NowUsesItsOwnLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	// 01:30 UTC on the 11th is 22:30 on the 10th in the shop
	now := time.Date(2026, 3, 11, 1, 30, 0, 0, time.UTC).In(loc)
	slots := ComputeSlots(Query{Date: mustDate(t, "2026-03-10"), Now: now}, nil, DefaultConfig())
	for _, s := range slots {
		if s.Available {
			t.Fatalf("every slot of the shop's current day after closing must be past, %s is available", s.Start)
		}
	}
}

func TestComputeSlots_StaffFilter(t *testing.T) {
	d := mustDate(t, "2026-03-10")
	now := at("2026-03-01 12:00")
	slot := mustTime(t, "11:00")
	cfg := DefaultConfig()

	withA := []Reservation{{Date: d, Time: slot, StaffID: "A", Status: StatusConfirmed}}
	if findSlot(t, ComputeSlots(Query{Date: d, StaffID: "A", Now: now}, withA, cfg), slot).Available {
		t.Fatalf("A's reservation must occupy A's view")
	}
	if !findSlot(t, ComputeSlots(Query{Date: d, StaffID: "B", Now: now}, withA, cfg), slot).Available {
		t.Fatalf("A's reservation must not occupy B's view")
	}
	if findSlot(t, ComputeSlots(Query{Date: d, Now: now}, withA, cfg), slot).Available {
		t.Fatalf("A's reservation must occupy the unfiltered view")
	}

	anyStaff := []Reservation{{Date: d, Time: slot, Status: StatusPending}}
	for _, filter := range []string{"", "A", "B"} {
		if findSlot(t, ComputeSlots(Query{Date: d, StaffID: filter, Now: now}, anyStaff, cfg), slot).Available {
			t.Fatalf("reservation without a barber must occupy view %q", filter)
		}
	}
}

func TestComputeSlots_TodayScenario(t *testing.T) {
	d := mustDate(t, "2026-03-10")
	res := []Reservation{{Date: d, Time: mustTime(t, "09:30"), StaffID: "A", Status: StatusConfirmed}}
	slots := ComputeSlots(Query{Date: d, Now: at("2026-03-10 09:15")}, res, DefaultConfig())

	for _, s := range slots {
		switch {
		case s.Start <= mustTime(t, "09:00"):
			if s.Available {
				t.Fatalf("%s should be past", s.Start)
			}
		case s.Start == mustTime(t, "09:30"):
			if s.Available {
				t.Fatalf("09:30 should be occupied")
			}
		default:
			if !s.Available {
				t.Fatalf("%s should be available", s.Start)
			}
		}
	}
}

func TestComputeSlots_Deterministic(t *testing.T) {
	d := mustDate(t, "2026-03-10")
	q := Query{Date: d, StaffID: "A", Now: at("2026-03-10 12:10")}
	res := []Reservation{
		{Date: d, Time: mustTime(t, "14:00"), StaffID: "A", Status: StatusPending},
		{Date: d, Time: mustTime(t, "15:00"), StaffID: "B", Status: StatusConfirmed},
		{Date: d, Time: mustTime(t, "16:00"), Status: StatusCancelled},
	}
	first := ComputeSlots(q, res, DefaultConfig())
	second := ComputeSlots(q, res, DefaultConfig())
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("slot %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func findSlot(t *testing.T, slots []Slot, start TimeOfDay) Slot {
	t.Helper()
	for _, s := range slots {
		if s.Start == start {
			return s
		}
	}
	t.Fatalf("slot %s not found", start)
	return Slot{}
}
