package srs

import (
	"math"
	"time"
)

// Algorithm constants.
const (
	InitialInterval    = 1
	InitialEaseFactor  = 2.5
	MinEaseFactor      = 1.3
	FailureThreshold   = 3
	DefaultEasePenalty = 0.2
	DefaultMaxInterval = 365
	secondInterval     = 6
)

// SchedulingState is the review schedule of a single flashcard.
type SchedulingState struct {
	Interval        int        `json:"interval"`
	RepetitionCount int        `json:"repetition_count"`
	EaseFactor      float64    `json:"ease_factor"`
	DueDate         time.Time  `json:"due_date"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at,omitempty"`
	TotalReviews    int        `json:"total_reviews"`
}

// NewSchedulingState returns the state of a card created at now.
// The card first comes due one day later.
func NewSchedulingState(now time.Time) SchedulingState {
	return SchedulingState{
		Interval:        InitialInterval,
		RepetitionCount: 0,
		EaseFactor:      InitialEaseFactor,
		DueDate:         addDays(now, InitialInterval),
		TotalReviews:    0,
	}
}

// IsDue reports whether the card is due for review at now.
func (s SchedulingState) IsDue(now time.Time) bool {
	return !s.DueDate.After(now)
}

// ReviewScheduler maps a scheduling state and a rating to the next state.
type ReviewScheduler interface {
	NextState(state SchedulingState, q Quality, now time.Time) SchedulingState
}

// SchedulerConfig configures a Scheduler. Zero values select the defaults.
type SchedulerConfig struct {
	EasePenalty float64 `json:"ease_penalty" koanf:"ease_penalty" validate:"gte=0,lte=1.2"` // zero → 0.2
	MaxInterval int     `json:"max_interval" koanf:"max_interval" validate:"eq=0|gte=6"`    // zero → 365 days
}

// Scheduler implements the SM-2 interval and ease factor algorithm.
type Scheduler struct {
	easePenalty float64
	maxInterval int
}

var _ ReviewScheduler = (*Scheduler)(nil)

// NewScheduler creates a Scheduler from cfg.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	penalty := cfg.EasePenalty
	if penalty == 0 {
		penalty = DefaultEasePenalty
	}
	if penalty < 0 || math.IsNaN(penalty) || math.IsInf(penalty, 0) {
		return nil, NewError(KindValidation, "new scheduler", ErrInvalidConfig,
			"ease penalty must be a positive number, got %v", cfg.EasePenalty)
	}

	maxIvl := cfg.MaxInterval
	if maxIvl == 0 {
		maxIvl = DefaultMaxInterval
	}
	if maxIvl < secondInterval {
		return nil, NewError(KindValidation, "new scheduler", ErrInvalidConfig,
			"maximum interval must be at least %d days, got %d", secondInterval, cfg.MaxInterval)
	}

	return &Scheduler{easePenalty: penalty, maxInterval: maxIvl}, nil
}

// DefaultScheduler returns a Scheduler with the default configuration.
func DefaultScheduler() *Scheduler {
	return &Scheduler{easePenalty: DefaultEasePenalty, maxInterval: DefaultMaxInterval}
}

// MaxInterval returns the longest interval, in days, the scheduler hands out.
func (s *Scheduler) MaxInterval() int { return s.maxInterval }

// NextState returns the state that follows a review of quality q at now.
// The input state is not modified.
func (s *Scheduler) NextState(state SchedulingState, q Quality, now time.Time) SchedulingState {
	next := state
	reviewedAt := now
	next.TotalReviews++
	next.LastReviewedAt = &reviewedAt

	next.EaseFactor = s.nextEaseFactor(state.EaseFactor, q)

	if !q.Passed() {
		next.RepetitionCount = 0
		next.Interval = InitialInterval
	} else {
		next.RepetitionCount++
		switch next.RepetitionCount {
		case 1:
			next.Interval = InitialInterval
		case 2:
			next.Interval = secondInterval
		default:
			next.Interval = int(math.Round(float64(max(state.Interval, 1)) * next.EaseFactor))
		}
	}
	next.Interval = min(max(next.Interval, 1), s.maxInterval)

	next.DueDate = addDays(now, next.Interval)
	return next
}

// nextEaseFactor applies the SM-2 update for passing ratings and a flat
// penalty for failing ones. The result never drops below MinEaseFactor.
func (s *Scheduler) nextEaseFactor(ef float64, q Quality) float64 {
	if ef < MinEaseFactor {
		ef = MinEaseFactor
	}
	if q.Passed() {
		d := float64(MaxQuality - q.Int())
		ef += 0.1 - d*(0.08+d*0.02)
	} else {
		ef -= s.easePenalty
	}
	return math.Max(ef, MinEaseFactor)
}

func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}
