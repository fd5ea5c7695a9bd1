package srs

import (
	"encoding/json"
	"fmt"
)

// Bounds of a recall quality rating.
const (
	MinQuality = 0
	MaxQuality = 5
)

// Quality is the SM-2 recall rating of one review, 0 (blackout) to 5 (perfect).
// The zero value is a valid blackout rating; any other value has to come from
// NewQuality, so a Quality is always in range.
type Quality struct {
	v int8
}

// NewQuality validates n and returns it as a Quality.
func NewQuality(n int) (Quality, error) {
	if n < MinQuality || n > MaxQuality {
		return Quality{}, NewError(KindValidation, "quality", ErrInvalidQuality,
			"quality must be between %d and %d, got %d", MinQuality, MaxQuality, n)
	}
	return Quality{v: int8(n)}, nil
}

// MustQuality is like NewQuality but panics on an out of range value.
// Meant for constants in tests and examples.
func MustQuality(n int) Quality {
	q, err := NewQuality(n)
	if err != nil {
		panic(err)
	}
	return q
}

// Int returns the rating as a plain integer.
func (q Quality) Int() int { return int(q.v) }

// Passed reports whether the rating counts as a successful recall.
func (q Quality) Passed() bool { return int(q.v) >= FailureThreshold }

func (q Quality) String() string { return fmt.Sprintf("Quality(%d)", q.v) }

// MarshalJSON encodes the rating as a JSON number.
func (q Quality) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(q.v))
}

// UnmarshalJSON decodes a JSON number and rejects values outside 0..5.
func (q *Quality) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return NewError(KindValidation, "quality", ErrInvalidQuality, "quality must be an integer: %s", data)
	}
	parsed, err := NewQuality(n)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
