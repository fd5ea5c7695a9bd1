package storage

const schema = `
-- The 'decks' table stores each deck as a JSON document.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    body TEXT NOT NULL
);

-- The 'reviews' table is the append-only review history of every deck.
CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    quality INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL,
    response_time_ms INTEGER,
    interval_days INTEGER NOT NULL,
    ease_factor REAL NOT NULL,
    repetition_count INTEGER NOT NULL,

    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS reviews_deck_id ON reviews(deck_id, reviewed_at);
`
