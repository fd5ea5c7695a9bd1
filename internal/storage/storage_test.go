package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danieldreier/hanzi-srs/internal/srs"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var baseTime = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func testDeck(id string, created time.Time) srs.Deck {
	reviewed := created.Add(time.Hour)
	return srs.Deck{
		ID:        id,
		Name:      id + " flashcards",
		Source:    srs.Provenance{Type: "lesson", ID: "lesson-1"},
		CreatedAt: created,
		Metadata:  srs.DeckMetadata{CardCount: 2, Difficulty: srs.DifficultyBeginner, Tags: []string{"hsk1"}},
		Cards: []srs.Flashcard{
			{
				ID:         id + "-c1",
				Front:      "你好",
				Back:       srs.CardBack{Phonetic: "nǐ hǎo", Definition: "hello"},
				SegmentID:  "s1",
				Tags:       []string{"hsk1"},
				CreatedAt:  created,
				Scheduling: srs.NewSchedulingState(created),
			},
			{
				ID:        id + "-c2",
				Front:     "谢谢",
				Back:      srs.CardBack{Phonetic: "xiè xie"},
				SegmentID: "s2",
				CreatedAt: created,
				Scheduling: srs.SchedulingState{
					Interval:        6,
					RepetitionCount: 2,
					EaseFactor:      2.6,
					DueDate:         created.AddDate(0, 0, 6),
					LastReviewedAt:  &reviewed,
					TotalReviews:    2,
				},
			},
		},
	}
}

func testReview(id, deckID string, at time.Time, q int, ms *int) srs.ReviewLog {
	return srs.ReviewLog{
		ID:              id,
		DeckID:          deckID,
		CardID:          deckID + "-c1",
		Quality:         srs.MustQuality(q),
		ReviewedAt:      at,
		ResponseTimeMs:  ms,
		Interval:        1,
		EaseFactor:      2.6,
		RepetitionCount: 1,
	}
}

func intPtr(v int) *int { return &v }

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	logger := zaptest.NewLogger(t)

	file := NewFileStorage(filepath.Join(t.TempDir(), "decks.json"), logger)
	require.NoError(t, file.Load())

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "decks.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{"file": file, "sqlite": db}
}

func TestStore_DeckRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			deck := testDeck("d1", baseTime)
			require.NoError(t, store.SaveDeck(ctx, deck))

			got, err := store.GetDeck(ctx, "d1")
			require.NoError(t, err)
			if diff := cmp.Diff(deck, got); diff != "" {
				t.Errorf("deck mismatch (-want +got):\n%s", diff)
			}

			deck.Cards[0].Scheduling.TotalReviews = 1
			deck.Name = "renamed"
			require.NoError(t, store.SaveDeck(ctx, deck))
			got, err = store.GetDeck(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, "renamed", got.Name)
			assert.Equal(t, 1, got.Cards[0].Scheduling.TotalReviews)
		})
	}
}

func TestStore_GetDeckReturnsCopy(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveDeck(ctx, testDeck("d1", baseTime)))

			got, err := store.GetDeck(ctx, "d1")
			require.NoError(t, err)
			got.Cards[0].Front = "changed"

			again, err := store.GetDeck(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, "你好", again.Cards[0].Front)
		})
	}
}

func TestStore_ListDecksOldestFirst(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			decks, err := store.ListDecks(ctx)
			require.NoError(t, err)
			assert.Empty(t, decks)

			require.NoError(t, store.SaveDeck(ctx, testDeck("late", baseTime.Add(2*time.Hour))))
			require.NoError(t, store.SaveDeck(ctx, testDeck("b", baseTime)))
			require.NoError(t, store.SaveDeck(ctx, testDeck("a", baseTime)))

			decks, err = store.ListDecks(ctx)
			require.NoError(t, err)
			ids := make([]string, 0, len(decks))
			for _, d := range decks {
				ids = append(ids, d.ID)
			}
			assert.Equal(t, []string{"a", "b", "late"}, ids)
		})
	}
}

func TestStore_Reviews(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveDeck(ctx, testDeck("d1", baseTime)))
			require.NoError(t, store.SaveDeck(ctx, testDeck("d2", baseTime)))

			want := []srs.ReviewLog{
				testReview("r1", "d1", baseTime.Add(time.Minute), 5, intPtr(1200)),
				testReview("r3", "d1", baseTime.Add(2*time.Minute), 2, nil),
			}
			require.NoError(t, store.AddReview(ctx, want[0]))
			require.NoError(t, store.AddReview(ctx, testReview("r2", "d2", baseTime, 4, nil)))
			require.NoError(t, store.AddReview(ctx, want[1]))

			got, err := store.ListReviews(ctx, "d1")
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmp.AllowUnexported(srs.Quality{})); diff != "" {
				t.Errorf("reviews mismatch (-want +got):\n%s", diff)
			}

			err = store.AddReview(ctx, testReview("r4", "missing", baseTime, 3, nil))
			assert.ErrorIs(t, err, ErrDeckNotFound)
			_, err = store.ListReviews(ctx, "missing")
			assert.ErrorIs(t, err, ErrDeckNotFound)
		})
	}
}

func TestStore_DeleteDeck(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveDeck(ctx, testDeck("d1", baseTime)))
			require.NoError(t, store.SaveDeck(ctx, testDeck("d2", baseTime)))
			require.NoError(t, store.AddReview(ctx, testReview("r1", "d1", baseTime, 4, nil)))
			require.NoError(t, store.AddReview(ctx, testReview("r2", "d2", baseTime, 4, nil)))

			require.NoError(t, store.DeleteDeck(ctx, "d1"))

			_, err := store.GetDeck(ctx, "d1")
			assert.ErrorIs(t, err, ErrDeckNotFound)
			assert.ErrorIs(t, store.DeleteDeck(ctx, "d1"), ErrDeckNotFound)

			// Re-creating the deck must not resurrect its old history.
			require.NoError(t, store.SaveDeck(ctx, testDeck("d1", baseTime)))
			logs, err := store.ListReviews(ctx, "d1")
			require.NoError(t, err)
			assert.Empty(t, logs)

			logs, err = store.ListReviews(ctx, "d2")
			require.NoError(t, err)
			assert.Len(t, logs, 1)
		})
	}
}

func TestStore_RejectsDeckWithoutID(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.SaveDeck(ctx, srs.Deck{Name: "anonymous"}))
		})
	}
}

func TestFileStorage_LoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "decks.json")
	store := NewFileStorage(path, nil)

	require.NoError(t, store.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc DeckStore
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Empty(t, doc.Decks)
	assert.NotNil(t, doc.Reviews)
}

func TestFileStorage_LoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decks.json")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	store := NewFileStorage(path, nil)
	require.NoError(t, store.Load())

	decks, err := store.ListDecks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, decks)
}

func TestFileStorage_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	err := NewFileStorage(path, nil).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal storage data")
}

func TestFileStorage_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "decks.json")

	first := NewFileStorage(path, nil)
	require.NoError(t, first.Load())
	deck := testDeck("d1", baseTime)
	require.NoError(t, first.SaveDeck(ctx, deck))
	require.NoError(t, first.AddReview(ctx, testReview("r1", "d1", baseTime, 3, intPtr(900))))
	require.NoError(t, first.Save())

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")

	second := NewFileStorage(path, nil)
	require.NoError(t, second.Load())

	got, err := second.GetDeck(ctx, "d1")
	require.NoError(t, err)
	if diff := cmp.Diff(deck, got); diff != "" {
		t.Errorf("deck mismatch after reload (-want +got):\n%s", diff)
	}
	logs, err := second.ListReviews(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 3, logs[0].Quality.Int())
	assert.Equal(t, 900, *logs[0].ResponseTimeMs)
}

func TestFileStorage_UnsavedChangesAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "decks.json")

	first := NewFileStorage(path, nil)
	require.NoError(t, first.Load())
	require.NoError(t, first.SaveDeck(ctx, testDeck("d1", baseTime)))

	second := NewFileStorage(path, nil)
	require.NoError(t, second.Load())
	_, err := second.GetDeck(ctx, "d1")
	assert.ErrorIs(t, err, ErrDeckNotFound)

	require.NoError(t, first.Close())
	require.NoError(t, second.Load())
	_, err = second.GetDeck(ctx, "d1")
	assert.NoError(t, err)
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "decks.db")

	db, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.SaveDeck(ctx, testDeck("d1", baseTime)))
	require.NoError(t, db.AddReview(ctx, testReview("r1", "d1", baseTime, 5, nil)))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path, nil)
	require.NoError(t, err)
	defer db.Close()

	deck, err := db.GetDeck(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, deck.Cards, 2)
	logs, err := db.ListReviews(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].ReviewedAt.Equal(baseTime))
	assert.Nil(t, logs[0].ResponseTimeMs)
}

func TestStore_RecordReview(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			deck := testDeck("d1", baseTime)
			require.NoError(t, store.SaveDeck(ctx, deck))

			reviewedAt := baseTime.Add(time.Hour)
			deck.Cards[0].Scheduling.TotalReviews = 1
			deck.Cards[0].Scheduling.LastReviewedAt = &reviewedAt
			log := testReview("r1", "d1", reviewedAt, 4, nil)
			require.NoError(t, store.RecordReview(ctx, deck, log))

			got, err := store.GetDeck(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, 1, got.Cards[0].Scheduling.TotalReviews)
			logs, err := store.ListReviews(ctx, "d1")
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, "r1", logs[0].ID)
		})
	}
}

func TestStore_RecordReviewRejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			missing := testDeck("gone", baseTime)
			err := store.RecordReview(ctx, missing, testReview("r1", "gone", baseTime, 4, nil))
			assert.ErrorIs(t, err, ErrDeckNotFound)
			_, err = store.GetDeck(ctx, "gone")
			assert.ErrorIs(t, err, ErrDeckNotFound, "a review must not create its deck")

			deck := testDeck("d1", baseTime)
			require.NoError(t, store.SaveDeck(ctx, deck))
			changed := deck.Clone()
			changed.Name = "renamed"
			err = store.RecordReview(ctx, changed, testReview("r2", "d2", baseTime, 4, nil))
			assert.Error(t, err)

			got, err := store.GetDeck(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, deck.Name, got.Name)
			logs, err := store.ListReviews(ctx, "d1")
			require.NoError(t, err)
			assert.Empty(t, logs)
		})
	}
}

func TestSQLiteStorage_RecordReviewRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "decks.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	deck := testDeck("d1", baseTime)
	require.NoError(t, db.SaveDeck(ctx, deck))
	require.NoError(t, db.AddReview(ctx, testReview("r1", "d1", baseTime, 4, nil)))

	// The log id is taken, so the insert fails after the deck update.
	changed := deck.Clone()
	changed.Cards[0].Scheduling.TotalReviews = 7
	err = db.RecordReview(ctx, changed, testReview("r1", "d1", baseTime.Add(time.Hour), 5, nil))
	require.Error(t, err)

	got, err := db.GetDeck(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cards[0].Scheduling.TotalReviews)
	logs, err := db.ListReviews(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, db.RecordReview(cancelled, changed, testReview("r2", "d1", baseTime, 5, nil)))
	got, err = db.GetDeck(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cards[0].Scheduling.TotalReviews)
}
