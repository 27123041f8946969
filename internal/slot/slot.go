// Package slot canonicalizes booking time windows into comparable keys.
package slot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSlot is returned when a (date, from, to) triple does not name a
// bookable hour-aligned window.
var ErrInvalidSlot = errors.New("invalid slot")

// DateLayout is the calendar date format used across the service.
const DateLayout = "2006-01-02"

// Boundaries is the fixed table of slot boundaries. Every bookable window is
// [Boundaries[i], Boundaries[i+1]); "12am" is the midnight terminator and can
// only appear as the end of the last window.
var Boundaries = []string{
	"10am", "11am", "12pm", "1pm", "2pm", "3pm", "4pm", "5pm",
	"6pm", "7pm", "8pm", "9pm", "10pm", "11pm", "12am",
}

var boundaryIndex = func() map[string]int {
	m := make(map[string]int, len(Boundaries))
	for i, b := range Boundaries {
		m[b] = i
	}
	return m
}()

// Next returns the boundary immediately after from. It fails for labels not
// in the table and for the terminator, which has no successor.
func Next(from string) (string, error) {
	i, ok := boundaryIndex[from]
	if !ok {
		return "", fmt.Errorf("%w: unknown time %q", ErrInvalidSlot, from)
	}
	if i == len(Boundaries)-1 {
		return "", fmt.Errorf("%w: %q is not a start time", ErrInvalidSlot, from)
	}
	return Boundaries[i+1], nil
}

// StartLabels returns every boundary that can open a window.
func StartLabels() []string {
	return Boundaries[:len(Boundaries)-1]
}

// Hour converts a boundary label to its 24h clock hour. The midnight
// terminator maps to 24 so that window ends stay monotonic within a day.
func Hour(label string) (int, error) {
	i, ok := boundaryIndex[label]
	if !ok {
		return 0, fmt.Errorf("%w: unknown time %q", ErrInvalidSlot, label)
	}
	return 10 + i, nil
}

// Key identifies a (venue, date, window) triple. Keys are plain comparable
// structs; the availability index relies on equal tuples producing equal keys.
type Key struct {
	VenueID string
	Date    string
	From    string
	To      string
}

// MakeKey validates the tuple and produces its canonical key. The window must
// be exactly one table step wide (to is always the derived successor of from),
// the date must be a calendar date no earlier than today, and the window must
// not have started yet.
func MakeKey(venueID, date, from, to string, now time.Time) (Key, error) {
	venueID = strings.TrimSpace(venueID)
	if venueID == "" {
		return Key{}, fmt.Errorf("%w: empty venue", ErrInvalidSlot)
	}

	next, err := Next(from)
	if err != nil {
		return Key{}, err
	}
	if to != next {
		return Key{}, fmt.Errorf("%w: window %s-%s, expected %s-%s", ErrInvalidSlot, from, to, from, next)
	}

	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return Key{}, fmt.Errorf("%w: bad date %q", ErrInvalidSlot, date)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return Key{}, fmt.Errorf("%w: date %s is in the past", ErrInvalidSlot, date)
	}

	key := Key{VenueID: venueID, Date: day.Format(DateLayout), From: from, To: to}
	start, err := key.StartsAt()
	if err != nil {
		return Key{}, err
	}
	if start.Before(now) {
		return Key{}, fmt.Errorf("%w: %s on %s has already started", ErrInvalidSlot, from, date)
	}
	return key, nil
}

// String returns the canonical form used for cache keys and log fields.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s-%s", k.VenueID, k.Date, k.From, k.To)
}

// StartsAt returns the wall-clock start of the window on its date.
func (k Key) StartsAt() (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, k.Date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidSlot, k.Date)
	}
	h, err := Hour(k.From)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(h) * time.Hour), nil
}

// Info is the per-window availability view rendered by slot pickers.
type Info struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Available bool   `json:"available"`
}
