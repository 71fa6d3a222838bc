package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Seat is a position at the virtual table. The zero value means "no seat",
// which makes the participant an observer.
type Seat struct {
	index int
	taken bool
}

// SeatAt returns a seat at the given non-negative index.
func SeatAt(index int) Seat {
	return Seat{index: index, taken: true}
}

// NoSeat returns the observer seat.
func NoSeat() Seat {
	return Seat{}
}

// Index returns the seat index and whether the participant is seated.
func (s Seat) Index() (int, bool) {
	return s.index, s.taken
}

// Seated reports whether the seat is an actual table position.
func (s Seat) Seated() bool {
	return s.taken
}

func (s Seat) String() string {
	if !s.taken {
		return "observer"
	}
	return strconv.Itoa(s.index)
}

// MarshalJSON encodes a seat as its index, or null for observers.
func (s Seat) MarshalJSON() ([]byte, error) {
	if !s.taken {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(s.index)), nil
}

// UnmarshalJSON accepts a non-negative integer or null.
func (s *Seat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = NoSeat()
		return nil
	}

	var index int
	if err := json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("seat index must be an integer or null: %w", err)
	}
	if index < 0 {
		return fmt.Errorf("seat index must not be negative, got %d", index)
	}

	*s = SeatAt(index)
	return nil
}
