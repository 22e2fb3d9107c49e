package availability

import "fmt"

// Config is the shop's bookable day: slots start every IntervalMinutes from
// OpenHour:00 up to, but excluding, CloseHour:00.
type Config struct {
	OpenHour        int
	CloseHour       int
	IntervalMinutes int
}

func DefaultConfig() Config {
	return Config{OpenHour: 8, CloseHour: 20, IntervalMinutes: 30}
}

func (c Config) Validate() error {
	if c.OpenHour < 0 || c.CloseHour > 24 || c.OpenHour >= c.CloseHour {
		return fmt.Errorf("business hours must satisfy 0 <= open < close <= 24 (got %d-%d)", c.OpenHour, c.CloseHour)
	}
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("slot interval must be positive (got %d)", c.IntervalMinutes)
	}
	if ((c.CloseHour-c.OpenHour)*60)%c.IntervalMinutes != 0 {
		return fmt.Errorf("slot interval %d does not divide business hours evenly", c.IntervalMinutes)
	}
	return nil
}

func (c Config) opensAt() TimeOfDay  { return TimeOfDay(c.OpenHour * 60) }
func (c Config) closesAt() TimeOfDay { return TimeOfDay(c.CloseHour * 60) }

// SlotCount is the number of candidate slots per day.
func (c Config) SlotCount() int {
	return (c.CloseHour - c.OpenHour) * 60 / c.IntervalMinutes
}

// Candidates returns every slot start of the day in ascending order. The
// result depends only on c.
func (c Config) Candidates() []TimeOfDay {
	out := make([]TimeOfDay, 0, c.SlotCount())
	for t := c.opensAt(); t < c.closesAt(); t += TimeOfDay(c.IntervalMinutes) {
		out = append(out, t)
	}
	return out
}

// Contains reports whether t is a slot start: inside business hours and on
// the interval grid.
func (c Config) Contains(t TimeOfDay) bool {
	if t < c.opensAt() || t >= c.closesAt() {
		return false
	}
	return int(t-c.opensAt())%c.IntervalMinutes == 0
}
