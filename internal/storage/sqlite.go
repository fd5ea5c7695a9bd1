package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danieldreier/hanzi-srs/internal/srs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// SQLiteStorage implements Store on an SQLite database. Every mutation is
// committed immediately, so Load and Save have nothing to do.
type SQLiteStorage struct {
	conn   *sql.DB
	logger *zap.Logger
}

var _ Store = (*SQLiteStorage)(nil)

// OpenSQLite opens the database at path and ensures the schema is up to date.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Debug("sqlite storage opened", zap.String("path", path))
	return &SQLiteStorage{conn: db, logger: logger.Named("storage")}, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveDeck inserts or replaces a deck.
func (s *SQLiteStorage) SaveDeck(ctx context.Context, deck srs.Deck) error {
	if deck.ID == "" {
		return errors.New("deck id is required")
	}
	return saveDeck(ctx, s.conn, deck)
}

func saveDeck(ctx context.Context, ex execer, deck srs.Deck) error {
	body, err := json.Marshal(deck)
	if err != nil {
		return fmt.Errorf("failed to marshal deck %s: %w", deck.ID, err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO decks (id, name, created_at, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, body = excluded.body
	`, deck.ID, deck.Name, deck.CreatedAt.UTC(), string(body))
	if err != nil {
		return fmt.Errorf("failed to save deck %s: %w", deck.ID, err)
	}
	return nil
}

// GetDeck retrieves a deck by id.
func (s *SQLiteStorage) GetDeck(ctx context.Context, id string) (srs.Deck, error) {
	var body string
	err := s.conn.QueryRowContext(ctx, `SELECT body FROM decks WHERE id = ?`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return srs.Deck{}, ErrDeckNotFound
		}
		return srs.Deck{}, fmt.Errorf("failed to find deck %s: %w", id, err)
	}
	return decodeDeck(body)
}

// ListDecks returns all decks, oldest first.
func (s *SQLiteStorage) ListDecks(ctx context.Context) ([]srs.Deck, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT body FROM decks`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	decks := []srs.Deck{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		deck, err := decodeDeck(body)
		if err != nil {
			return nil, err
		}
		decks = append(decks, deck)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	sortDecks(decks)
	return decks, nil
}

// DeleteDeck removes a deck. Its reviews go with it through the foreign key.
func (s *SQLiteStorage) DeleteDeck(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", id, err)
	}
	if n == 0 {
		return ErrDeckNotFound
	}
	s.logger.Debug("deck deleted", zap.String("deck_id", id))
	return nil
}

// AddReview appends a review log. The deck must exist.
func (s *SQLiteStorage) AddReview(ctx context.Context, log srs.ReviewLog) error {
	if err := deckExists(ctx, s.conn, log.DeckID); err != nil {
		return err
	}
	return insertReview(ctx, s.conn, log)
}

// RecordReview replaces an existing deck and appends log in one transaction.
func (s *SQLiteStorage) RecordReview(ctx context.Context, deck srs.Deck, log srs.ReviewLog) error {
	if err := checkReviewedDeck(deck, log); err != nil {
		return err
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deckExists(ctx, tx, deck.ID); err != nil {
		return err
	}
	if err := saveDeck(ctx, tx, deck); err != nil {
		return err
	}
	if err := insertReview(ctx, tx, log); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review %s: %w", log.ID, err)
	}
	return nil
}

func insertReview(ctx context.Context, ex execer, log srs.ReviewLog) error {
	var responseTime sql.NullInt64
	if log.ResponseTimeMs != nil {
		responseTime = sql.NullInt64{Int64: int64(*log.ResponseTimeMs), Valid: true}
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO reviews (id, deck_id, card_id, quality, reviewed_at, response_time_ms, interval_days, ease_factor, repetition_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		log.ID,
		log.DeckID,
		log.CardID,
		log.Quality.Int(),
		log.ReviewedAt.UTC(),
		responseTime,
		log.Interval,
		log.EaseFactor,
		log.RepetitionCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review %s: %w", log.ID, err)
	}
	return nil
}

// ListReviews returns the review history of a deck in insertion order.
func (s *SQLiteStorage) ListReviews(ctx context.Context, deckID string) ([]srs.ReviewLog, error) {
	if err := deckExists(ctx, s.conn, deckID); err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, deck_id, card_id, quality, reviewed_at, response_time_ms, interval_days, ease_factor, repetition_count
		FROM reviews WHERE deck_id = ?
		ORDER BY rowid
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	logs := []srs.ReviewLog{}
	for rows.Next() {
		var (
			l            srs.ReviewLog
			quality      int
			reviewedAt   time.Time
			responseTime sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.DeckID, &l.CardID, &quality, &reviewedAt, &responseTime,
			&l.Interval, &l.EaseFactor, &l.RepetitionCount); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		if l.Quality, err = srs.NewQuality(quality); err != nil {
			return nil, fmt.Errorf("review %s: %w", l.ID, err)
		}
		l.ReviewedAt = reviewedAt.UTC()
		if responseTime.Valid {
			ms := int(responseTime.Int64)
			l.ResponseTimeMs = &ms
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reviews for deck %s: %w", deckID, err)
	}
	return logs, nil
}

// Load is a no-op; the schema is applied when the database is opened.
func (s *SQLiteStorage) Load() error { return nil }

// Save is a no-op; every mutation is committed immediately.
func (s *SQLiteStorage) Save() error { return nil }

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.conn.Close()
}

func deckExists(ctx context.Context, ex execer, id string) error {
	var n int
	if err := ex.QueryRowContext(ctx, `SELECT COUNT(1) FROM decks WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("failed to look up deck %s: %w", id, err)
	}
	if n == 0 {
		return ErrDeckNotFound
	}
	return nil
}

func decodeDeck(body string) (srs.Deck, error) {
	var deck srs.Deck
	if err := json.Unmarshal([]byte(body), &deck); err != nil {
		return srs.Deck{}, fmt.Errorf("failed to unmarshal deck: %w", err)
	}
	return deck, nil
}
