package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/danieldreier/hanzi-srs/internal/lesson"
	"github.com/danieldreier/hanzi-srs/internal/srs"
	"github.com/danieldreier/hanzi-srs/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeckService ties lessons, the SM-2 core and the deck store together.
type DeckService struct {
	Store    storage.Store
	Lessons  lesson.Source
	Factory  *srs.Factory
	Reviewer *srs.Reviewer
	Now      func() time.Time
	Logger   *zap.Logger

	locks deckLocks
}

// NewDeckService creates a DeckService using the wall clock and uuid ids.
func NewDeckService(store storage.Store, lessons lesson.Source, scheduler srs.ReviewScheduler, logger *zap.Logger) *DeckService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DeckService{
		Store:   store,
		Lessons: lessons,
		Now:     time.Now,
		Logger:  logger,
	}
	// The core shares the service clock.
	s.Factory = &srs.Factory{Now: s.now, NewID: uuid.NewString}
	s.Reviewer = &srs.Reviewer{Scheduler: scheduler, Now: s.now, NewID: uuid.NewString}
	return s
}

// GenerateDeck builds a deck from a lesson and stores it.
func (s *DeckService) GenerateDeck(ctx context.Context, req srs.GenerateRequest) (srs.GenerateResult, error) {
	const op = "generate deck"
	s.Logger.Debug("GenerateDeck called",
		zap.String("source_id", req.SourceID),
		zap.String("source_type", req.SourceType),
		zap.Strings("tags", req.Tags))

	if err := req.Validate(); err != nil {
		return srs.GenerateResult{}, err
	}
	if req.SourceType != "" && req.SourceType != srs.DefaultSourceType {
		return srs.GenerateResult{}, srs.NewError(srs.KindValidation, op, nil,
			"unsupported source type %q", req.SourceType)
	}

	l, err := s.Lessons.Segments(ctx, req.SourceID)
	if err != nil {
		return srs.GenerateResult{}, err
	}

	res, err := s.Factory.Generate(req, l.Segments)
	if err != nil {
		s.Logger.Info("deck generation rejected", zap.String("source_id", req.SourceID), zap.Error(err))
		return srs.GenerateResult{}, err
	}

	if err := s.Store.SaveDeck(ctx, res.Deck); err != nil {
		return srs.GenerateResult{}, fmt.Errorf("error storing deck %s: %w", res.Deck.ID, err)
	}
	if err := s.Store.Save(); err != nil {
		return srs.GenerateResult{}, fmt.Errorf("error saving storage after generating deck %s: %w", res.Deck.ID, err)
	}

	s.Logger.Info("deck generated",
		zap.String("deck_id", res.Deck.ID),
		zap.Int("cards", len(res.Deck.Cards)),
		zap.Int64("generation_time_ms", res.GenerationTimeMs))
	return res, nil
}

// ListDecks returns a summary of every stored deck.
func (s *DeckService) ListDecks(ctx context.Context) ([]DeckSummary, error) {
	decks, err := s.Store.ListDecks(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing decks: %w", err)
	}
	now := s.now()
	summaries := make([]DeckSummary, 0, len(decks))
	for _, d := range decks {
		summaries = append(summaries, summarizeDeck(d, now))
	}
	return summaries, nil
}

// DueCards returns the due queue of a deck restricted to cards carrying all
// tags. A limit of zero returns the whole queue.
func (s *DeckService) DueCards(ctx context.Context, deckID string, tags []string, limit int) (srs.DueQueueResult, error) {
	const op = "due cards"
	if limit < 0 {
		return srs.DueQueueResult{}, srs.NewError(srs.KindValidation, op, nil, "limit must not be negative, got %d", limit)
	}

	deck, err := s.getDeck(ctx, op, deckID)
	if err != nil {
		return srs.DueQueueResult{}, err
	}

	if len(tags) > 0 {
		filtered := deck.Cards[:0]
		for _, c := range deck.Cards {
			if c.HasAllTags(tags) {
				filtered = append(filtered, c)
			}
		}
		deck.Cards = filtered
	}

	res := srs.DueQueue(deck, s.now()).Limit(limit)
	s.Logger.Debug("due cards computed",
		zap.String("deck_id", deckID),
		zap.Strings("tags", tags),
		zap.Int("total_due", res.TotalDue),
		zap.Int("returned", len(res.Queue)))
	return res, nil
}

// SubmitReview applies one review, persists the updated deck and appends the
// review log. Reviews of the same deck are serialized.
func (s *DeckService) SubmitReview(ctx context.Context, deckID string, req srs.ReviewRequest) (srs.ReviewResult, error) {
	const op = "submit review"
	unlock := s.locks.lock(deckID)
	defer unlock()

	deck, err := s.getDeck(ctx, op, deckID)
	if err != nil {
		return srs.ReviewResult{}, err
	}

	res, err := s.Reviewer.Review(&deck, req)
	if err != nil {
		s.Logger.Info("review rejected",
			zap.String("deck_id", deckID),
			zap.String("card_id", req.CardID),
			zap.Error(err))
		return srs.ReviewResult{}, err
	}

	if err := s.Store.RecordReview(ctx, deck, res.Log); err != nil {
		return srs.ReviewResult{}, s.storeError(op, deckID, fmt.Errorf("error recording review for card %s: %w", req.CardID, err))
	}
	if err := s.Store.Save(); err != nil {
		return srs.ReviewResult{}, fmt.Errorf("error saving storage after review of card %s: %w", req.CardID, err)
	}

	s.Logger.Debug("review recorded",
		zap.String("deck_id", deckID),
		zap.String("card_id", req.CardID),
		zap.Int("quality", req.Quality),
		zap.Int("interval", res.Interval),
		zap.Time("next_review", res.NextReviewDate))
	return res, nil
}

// Stats returns deck statistics together with today's review activity.
func (s *DeckService) Stats(ctx context.Context, deckID string) (StatsResponse, error) {
	const op = "deck stats"
	deck, err := s.getDeck(ctx, op, deckID)
	if err != nil {
		return StatsResponse{}, err
	}
	logs, err := s.Store.ListReviews(ctx, deckID)
	if err != nil {
		return StatsResponse{}, s.storeError(op, deckID, err)
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	reviewsToday, correctToday := 0, 0
	for _, l := range logs {
		if l.ReviewedAt.Before(today) || l.ReviewedAt.After(now) {
			continue
		}
		reviewsToday++
		if l.Quality.Passed() {
			correctToday++
		}
	}

	retentionRate := 0.0
	if reviewsToday > 0 {
		retentionRate = math.Round(float64(correctToday)/float64(reviewsToday)*1000) / 10
	}

	return StatsResponse{
		DeckID:        deckID,
		DeckStats:     srs.Summarize(deck, now),
		ReviewsToday:  reviewsToday,
		RetentionRate: retentionRate,
		StudyStreak:   srs.StudyStreak(logs, now),
	}, nil
}

// DeleteDeck removes a deck and its review history.
func (s *DeckService) DeleteDeck(ctx context.Context, deckID string) error {
	const op = "delete deck"
	unlock := s.locks.lock(deckID)
	defer unlock()

	if err := s.Store.DeleteDeck(ctx, deckID); err != nil {
		return s.storeError(op, deckID, err)
	}
	if err := s.Store.Save(); err != nil {
		return fmt.Errorf("error saving storage after deleting deck %s: %w", deckID, err)
	}
	s.Logger.Info("deck deleted", zap.String("deck_id", deckID))
	return nil
}

func (s *DeckService) getDeck(ctx context.Context, op, deckID string) (srs.Deck, error) {
	deck, err := s.Store.GetDeck(ctx, deckID)
	if err != nil {
		return srs.Deck{}, s.storeError(op, deckID, err)
	}
	return deck, nil
}

// storeError turns a missing deck into a not-found error and wraps anything else.
func (s *DeckService) storeError(op, deckID string, err error) error {
	if errors.Is(err, storage.ErrDeckNotFound) {
		return srs.NewError(srs.KindNotFound, op, err, "no deck with id %q", deckID)
	}
	s.Logger.Error("storage failure", zap.String("op", op), zap.String("deck_id", deckID), zap.Error(err))
	return fmt.Errorf("%s: error accessing deck %s: %w", op, deckID, err)
}

func (s *DeckService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// deckLocks hands out one mutex per deck id. An entry lives only while some
// caller holds or waits for it.
type deckLocks struct {
	mu    sync.Mutex
	locks map[string]*deckLock
}

type deckLock struct {
	sync.Mutex
	refs int
}

func (l *deckLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*deckLock)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &deckLock{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
