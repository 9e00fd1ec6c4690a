package availability

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/sautiksau/bookingsync/internal/booking"
	"github.com/sautiksau/bookingsync/internal/logging"
)

// Defaults applied by New.
const (
	DefaultOpen        = "09:00"
	DefaultClose       = "17:00"
	DefaultStepMinutes = 30

	// MaxHorizonDays bounds a single query.
	MaxHorizonDays = 366
)

var (
	// ErrInvalidDuration is returned for a non-positive service duration.
	ErrInvalidDuration = errors.New("availability: duration must be positive")

	// ErrInvalidHorizon is returned for a horizon outside [1, MaxHorizonDays].
	ErrInvalidHorizon = errors.New("availability: horizon out of range")
)

// BookingLister is the read side of the booking ledger.
type BookingLister interface {
	List(ctx context.Context, filter booking.Filter) ([]*booking.Booking, error)
}

// TimeSlot is a bookable interval.
type TimeSlot struct {
	ID        string `json:"id"` // <date>-<HH:MM>
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// DayAvailability lists the free slots of one day in ascending order.
type DayAvailability struct {
	Date  string     `json:"date"`
	Slots []TimeSlot `json:"slots"`
}

// Config configures a Calculator.
type Config struct {
	Bookings BookingLister

	// Open and Close bound business hours as HH:MM.
	Open  string
	Close string

	StepMinutes int

	// Weekdays lists the days the business is open. Empty means every day.
	Weekdays []time.Weekday

	Location *time.Location
	Logger   *slog.Logger
	Now      func() time.Time
}

// Calculator computes availability.
type Calculator struct {
	bookings BookingLister
	open     int // minutes after midnight
	close    int
	step     int
	weekdays []time.Weekday
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Calculator. Open and Close must be valid HH:MM values with
// Open before Close.
func New(cfg Config) (*Calculator, error) {
	if cfg.Open == "" {
		cfg.Open = DefaultOpen
	}
	if cfg.Close == "" {
		cfg.Close = DefaultClose
	}
	if cfg.StepMinutes == 0 {
		cfg.StepMinutes = DefaultStepMinutes
	}
	if cfg.StepMinutes < 0 {
		return nil, fmt.Errorf("availability: step must be positive, got %d", cfg.StepMinutes)
	}

	open, err := minuteOfDay(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("availability: invalid opening time: %w", err)
	}
	closing, err := minuteOfDay(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("availability: invalid closing time: %w", err)
	}
	if closing <= open {
		return nil, fmt.Errorf("availability: closing time %s must be after opening time %s", cfg.Close, cfg.Open)
	}

	c := &Calculator{
		bookings: cfg.Bookings,
		open:     open,
		close:    closing,
		step:     cfg.StepMinutes,
		weekdays: cfg.Weekdays,
		loc:      cfg.Location,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = logging.WithService(c.logger, "availability")
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Compute loads the active bookings in [today, today+horizonDays) once and
// returns a sequence yielding each day of that range in ascending order.
// Days without free slots are yielded with an empty slot list. The sequence
// reflects the ledger at call time and should be ranged over once.
func (c *Calculator) Compute(ctx context.Context, durationMinutes, horizonDays int) (iter.Seq[DayAvailability], error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	if horizonDays <= 0 || horizonDays > MaxHorizonDays {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizonDays)
	}

	now := c.now().In(c.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
	end := today.AddDate(0, 0, horizonDays)

	active, err := c.bookings.List(ctx, booking.Filter{
		FromDate:   today.Format(booking.DateFormat),
		ToDate:     end.Format(booking.DateFormat),
		ActiveOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	busy := c.busyByDate(active)
	duration := time.Duration(durationMinutes) * time.Minute

	return func(yield func(DayAvailability) bool) {
		for day := today; day.Before(end); day = day.AddDate(0, 0, 1) {
			date := day.Format(booking.DateFormat)
			if !yield(DayAvailability{Date: date, Slots: c.daySlots(day, duration, now, busy[date])}) {
				return
			}
		}
	}, nil
}

// Collect drains a Compute result into a slice.
func Collect(seq iter.Seq[DayAvailability]) []DayAvailability {
	return slices.Collect(seq)
}

type interval struct {
	start time.Time
	end   time.Time
}

func (c *Calculator) busyByDate(active []*booking.Booking) map[string][]interval {
	busy := make(map[string][]interval)
	for _, b := range active {
		start, end, err := b.Interval(c.loc)
		if err != nil {
			c.logger.Warn("ignoring booking with malformed times", logging.BookingID(b.ID), logging.Err(err))
			continue
		}
		busy[b.Date] = append(busy[b.Date], interval{start: start, end: end})
	}
	return busy
}

func (c *Calculator) daySlots(day time.Time, duration time.Duration, now time.Time, busy []interval) []TimeSlot {
	slots := []TimeSlot{}
	if !c.isOpen(day.Weekday()) {
		return slots
	}

	y, m, d := day.Date()
	closing := time.Date(y, m, d, 0, c.close, 0, 0, c.loc)
	date := day.Format(booking.DateFormat)

	for minute := c.open; ; minute += c.step {
		start := time.Date(y, m, d, 0, minute, 0, 0, c.loc)
		end := start.Add(duration)
		if end.After(closing) {
			break
		}
		if !start.After(now) || overlapsAny(start, end, busy) {
			continue
		}
		hhmm := start.Format(booking.TimeFormat)
		slots = append(slots, TimeSlot{
			ID:        date + "-" + hhmm,
			Date:      date,
			StartTime: hhmm,
			EndTime:   end.Format(booking.TimeFormat),
		})
	}
	return slots
}

func (c *Calculator) isOpen(wd time.Weekday) bool {
	return len(c.weekdays) == 0 || slices.Contains(c.weekdays, wd)
}

func overlapsAny(start, end time.Time, busy []interval) bool {
	for _, iv := range busy {
		if booking.Overlaps(start, end, iv.start, iv.end) {
			return true
		}
	}
	return false
}

func minuteOfDay(hhmm string) (int, error) {
	t, err := time.Parse(booking.TimeFormat, hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
