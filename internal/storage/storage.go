package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/danieldreier/hanzi-srs/internal/srs"
	"go.uber.org/zap"
)

// ErrDeckNotFound is returned when a deck is not found in the storage
var ErrDeckNotFound = errors.New("deck not found")

// Store persists decks and their review history.
type Store interface {
	// Deck operations
	SaveDeck(ctx context.Context, deck srs.Deck) error
	GetDeck(ctx context.Context, id string) (srs.Deck, error)
	ListDecks(ctx context.Context) ([]srs.Deck, error)
	DeleteDeck(ctx context.Context, id string) error

	// Review log operations
	AddReview(ctx context.Context, log srs.ReviewLog) error
	ListReviews(ctx context.Context, deckID string) ([]srs.ReviewLog, error)

	// RecordReview replaces an existing deck and appends its review log in
	// one step: either both are stored or neither is.
	RecordReview(ctx context.Context, deck srs.Deck, log srs.ReviewLog) error

	// Lifecycle
	Load() error
	Save() error
	Close() error
}

// DeckStore is the document written to the JSON file.
type DeckStore struct {
	Decks       map[string]srs.Deck `json:"decks"`
	Reviews     []srs.ReviewLog     `json:"reviews"`
	LastUpdated time.Time           `json:"last_updated"`
}

func checkReviewedDeck(deck srs.Deck, log srs.ReviewLog) error {
	if deck.ID == "" {
		return errors.New("deck id is required")
	}
	if log.DeckID != deck.ID {
		return fmt.Errorf("review %s belongs to deck %q, not %q", log.ID, log.DeckID, deck.ID)
	}
	return nil
}

func emptyDeckStore() DeckStore {
	return DeckStore{
		Decks:   make(map[string]srs.Deck),
		Reviews: []srs.ReviewLog{},
	}
}

// FileStorage implements Store using a single JSON file. Mutations stay in
// memory until Save is called.
type FileStorage struct {
	filePath string
	store    DeckStore
	mu       sync.RWMutex
	logger   *zap.Logger
}

var _ Store = (*FileStorage)(nil)

// NewFileStorage creates a new FileStorage instance. A nil logger disables logging.
func NewFileStorage(filePath string, logger *zap.Logger) *FileStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("creating file storage", zap.String("path", filePath))
	return &FileStorage{
		filePath: filePath,
		store:    emptyDeckStore(),
		logger:   logger.Named("storage"),
	}
}

// SaveDeck inserts or replaces a deck.
func (fs *FileStorage) SaveDeck(_ context.Context, deck srs.Deck) error {
	if deck.ID == "" {
		return errors.New("deck id is required")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.store.Decks[deck.ID] = deck.Clone()
	fs.store.LastUpdated = time.Now()
	return nil
}

// GetDeck returns a copy of the deck with the given id.
func (fs *FileStorage) GetDeck(_ context.Context, id string) (srs.Deck, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	deck, exists := fs.store.Decks[id]
	if !exists {
		return srs.Deck{}, ErrDeckNotFound
	}
	return deck.Clone(), nil
}

// ListDecks returns all decks, oldest first.
func (fs *FileStorage) ListDecks(_ context.Context) ([]srs.Deck, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := make([]srs.Deck, 0, len(fs.store.Decks))
	for _, deck := range fs.store.Decks {
		result = append(result, deck.Clone())
	}
	sortDecks(result)
	return result, nil
}

// DeleteDeck removes a deck together with its review history.
func (fs *FileStorage) DeleteDeck(_ context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.store.Decks[id]; !exists {
		return ErrDeckNotFound
	}
	delete(fs.store.Decks, id)

	kept := fs.store.Reviews[:0]
	for _, r := range fs.store.Reviews {
		if r.DeckID != id {
			kept = append(kept, r)
		}
	}
	fs.store.Reviews = kept
	fs.store.LastUpdated = time.Now()
	return nil
}

// AddReview appends a review log. The deck must exist.
func (fs *FileStorage) AddReview(_ context.Context, log srs.ReviewLog) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.store.Decks[log.DeckID]; !exists {
		return ErrDeckNotFound
	}
	fs.store.Reviews = append(fs.store.Reviews, log)
	fs.store.LastUpdated = time.Now()
	return nil
}

// RecordReview replaces an existing deck and appends log under one lock.
func (fs *FileStorage) RecordReview(_ context.Context, deck srs.Deck, log srs.ReviewLog) error {
	if err := checkReviewedDeck(deck, log); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.store.Decks[deck.ID]; !exists {
		return ErrDeckNotFound
	}
	fs.store.Decks[deck.ID] = deck.Clone()
	fs.store.Reviews = append(fs.store.Reviews, log)
	fs.store.LastUpdated = time.Now()
	return nil
}

// ListReviews returns the review history of a deck in insertion order.
func (fs *FileStorage) ListReviews(_ context.Context, deckID string) ([]srs.ReviewLog, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, exists := fs.store.Decks[deckID]; !exists {
		return nil, ErrDeckNotFound
	}
	result := []srs.ReviewLog{}
	for _, r := range fs.store.Reviews {
		if r.DeckID == deckID {
			result = append(result, r)
		}
	}
	return result, nil
}

// save writes the store without acquiring the lock. The caller holds the write lock.
func (fs *FileStorage) save() error {
	if fs.store.Decks == nil {
		fs.store.Decks = make(map[string]srs.Deck)
	}
	if fs.store.Reviews == nil {
		fs.store.Reviews = []srs.ReviewLog{}
	}
	fs.store.LastUpdated = time.Now()

	dataBytes, err := json.MarshalIndent(fs.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage data: %w", err)
	}

	dir := filepath.Dir(fs.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary file and rename it over the target
	tempFile := fs.filePath + ".tmp"
	if err := os.WriteFile(tempFile, dataBytes, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, fs.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	fs.logger.Debug("store saved",
		zap.String("path", fs.filePath),
		zap.Int("decks", len(fs.store.Decks)),
		zap.Int("reviews", len(fs.store.Reviews)))
	return nil
}

// Load reads the store from disk. A missing file is created empty.
func (fs *FileStorage) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := os.Stat(fs.filePath); os.IsNotExist(err) {
		fs.logger.Info("store file not found, initializing empty store", zap.String("path", fs.filePath))
		fs.store = emptyDeckStore()
		if saveErr := fs.save(); saveErr != nil {
			return fmt.Errorf("failed to save initial empty store: %w", saveErr)
		}
		return nil
	}

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		return fmt.Errorf("failed to read storage file: %w", err)
	}
	if len(data) == 0 {
		fs.store = emptyDeckStore()
		return nil
	}

	var store DeckStore
	if err := json.Unmarshal(data, &store); err != nil {
		return fmt.Errorf("failed to unmarshal storage data: %w", err)
	}
	if store.Decks == nil {
		store.Decks = make(map[string]srs.Deck)
	}
	if store.Reviews == nil {
		store.Reviews = []srs.ReviewLog{}
	}

	fs.store = store
	fs.logger.Debug("store loaded",
		zap.String("path", fs.filePath),
		zap.Int("decks", len(store.Decks)),
		zap.Int("reviews", len(store.Reviews)))
	return nil
}

// Save saves the store to the file atomically.
func (fs *FileStorage) Save() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.save()
}

// Close flushes the store.
func (fs *FileStorage) Close() error {
	return fs.Save()
}

func sortDecks(decks []srs.Deck) {
	sort.Slice(decks, func(i, j int) bool {
		if !decks[i].CreatedAt.Equal(decks[j].CreatedAt) {
			return decks[i].CreatedAt.Before(decks[j].CreatedAt)
		}
		return decks[i].ID < decks[j].ID
	})
}
