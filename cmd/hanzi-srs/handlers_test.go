package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callTool invokes a tool handler directly with the service in context.
func callTool(t *testing.T, svc *DeckService, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := handler(withService(context.Background(), svc), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), v))
}

type errorPayload struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func requireToolError(t *testing.T, result *mcp.CallToolResult, kind string) errorPayload {
	t.Helper()
	assert.True(t, result.IsError)
	var payload errorPayload
	decodeResult(t, result, &payload)
	assert.Equal(t, kind, payload.Error.Kind)
	assert.NotEmpty(t, payload.Error.Message)
	return payload
}

type generatePayload struct {
	Deck struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Cards []struct {
			ID    string `json:"id"`
			Front string `json:"front"`
			Back  struct {
				Phonetic   string `json:"phonetic"`
				Definition string `json:"definition"`
				Example    string `json:"example"`
			} `json:"back"`
			Tags []string `json:"tags"`
		} `json:"cards"`
		Metadata struct {
			CardCount  int    `json:"card_count"`
			Difficulty string `json:"difficulty"`
		} `json:"metadata"`
	} `json:"deck"`
	GenerationTimeMs int64 `json:"generation_time_ms"`
}

func TestHandleGenerateDeck(t *testing.T) {
	svc, _, _ := newTestService(t)

	result := callTool(t, svc, handleGenerateDeck, "generate_deck", map[string]interface{}{
		"source_id":        "greetings",
		"name":             "Day one",
		"include_examples": true,
		"card_limit":       float64(2),
		"difficulty":       "beginner",
		"tags":             []interface{}{"hsk1", "greetings"},
	})
	assert.False(t, result.IsError)

	var payload generatePayload
	decodeResult(t, result, &payload)
	assert.Equal(t, "Day one", payload.Deck.Name)
	require.Len(t, payload.Deck.Cards, 2)
	assert.Equal(t, "你好", payload.Deck.Cards[0].Front)
	assert.Equal(t, "你好，我叫小明。", payload.Deck.Cards[0].Back.Example)
	assert.Empty(t, payload.Deck.Cards[0].Back.Definition)
	assert.Equal(t, []string{"hsk1", "greetings"}, payload.Deck.Cards[1].Tags)
	assert.Equal(t, 2, payload.Deck.Metadata.CardCount)
	assert.Equal(t, "beginner", payload.Deck.Metadata.Difficulty)
	assert.GreaterOrEqual(t, payload.GenerationTimeMs, int64(0))
}

func TestHandleGenerateDeck_Errors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		kind string
	}{
		{name: "missing source", args: map[string]interface{}{}, kind: "validation"},
		{name: "fractional limit", args: map[string]interface{}{"source_id": "greetings", "card_limit": 2.5}, kind: "validation"},
		{name: "zero limit", args: map[string]interface{}{"source_id": "greetings", "card_limit": float64(0)}, kind: "validation"},
		{name: "unknown difficulty", args: map[string]interface{}{"source_id": "greetings", "difficulty": "expert"}, kind: "validation"},
		{name: "unknown lesson", args: map[string]interface{}{"source_id": "nope"}, kind: "not_found"},
		{name: "nothing to study", args: map[string]interface{}{"source_id": "punctuation"}, kind: "empty_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			result := callTool(t, svc, handleGenerateDeck, "generate_deck", tt.args)
			requireToolError(t, result, tt.kind)
		})
	}
}

func TestHandleReviewCycle(t *testing.T) {
	svc, _, clock := newTestService(t)
	deck := generateGreetings(t, svc)
	clock.Advance(24 * time.Hour)

	result := callTool(t, svc, handleGetDueCards, "get_due_cards", map[string]interface{}{
		"deck_id": deck.ID,
		"limit":   float64(1),
	})
	var due struct {
		DeckID   string `json:"deck_id"`
		Queue    []struct{ ID string } `json:"queue"`
		TotalDue int                   `json:"total_due"`
	}
	decodeResult(t, result, &due)
	assert.Equal(t, deck.ID, due.DeckID)
	require.Len(t, due.Queue, 1)
	assert.Equal(t, 3, due.TotalDue)

	result = callTool(t, svc, handleSubmitReview, "submit_review", map[string]interface{}{
		"deck_id":          deck.ID,
		"card_id":          due.Queue[0].ID,
		"quality":          float64(2),
		"response_time_ms": float64(4200),
	})
	assert.False(t, result.IsError)
	var review struct {
		Success        bool      `json:"success"`
		Interval       int       `json:"interval"`
		NextReviewDate time.Time `json:"next_review_date"`
		UpdatedCard    struct {
			ID         string `json:"id"`
			Scheduling struct {
				RepetitionCount int     `json:"repetition_count"`
				EaseFactor      float64 `json:"ease_factor"`
			} `json:"scheduling"`
		} `json:"updated_card"`
	}
	decodeResult(t, result, &review)
	assert.True(t, review.Success)
	assert.Equal(t, 1, review.Interval)
	assert.Equal(t, 0, review.UpdatedCard.Scheduling.RepetitionCount)
	assert.InDelta(t, 2.3, review.UpdatedCard.Scheduling.EaseFactor, 1e-9)
	assert.True(t, review.NextReviewDate.Equal(clock.Now().AddDate(0, 0, 1)))

	result = callTool(t, svc, handleDeckStats, "deck_stats", map[string]interface{}{"deck_id": deck.ID})
	var stats struct {
		TotalCards    int     `json:"total_cards"`
		DueCards      int     `json:"due_cards"`
		ReviewsToday  int     `json:"reviews_today"`
		RetentionRate float64 `json:"retention_rate"`
		StudyStreak   int     `json:"study_streak"`
	}
	decodeResult(t, result, &stats)
	assert.Equal(t, 3, stats.TotalCards)
	assert.Equal(t, 2, stats.DueCards)
	assert.Equal(t, 1, stats.ReviewsToday)
	assert.Equal(t, 0.0, stats.RetentionRate)
	assert.Equal(t, 1, stats.StudyStreak)
}

func TestHandleSubmitReview_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)
	deck := generateGreetings(t, svc)
	cardID := deck.Cards[0].ID

	tests := []struct {
		name string
		args map[string]interface{}
		kind string
	}{
		{name: "missing deck", args: map[string]interface{}{"card_id": cardID, "quality": float64(3)}, kind: "validation"},
		{name: "missing quality", args: map[string]interface{}{"deck_id": deck.ID, "card_id": cardID}, kind: "validation"},
		{name: "quality as string", args: map[string]interface{}{"deck_id": deck.ID, "card_id": cardID, "quality": "5"}, kind: "validation"},
		{name: "quality out of range", args: map[string]interface{}{"deck_id": deck.ID, "card_id": cardID, "quality": float64(6)}, kind: "validation"},
		{name: "negative response time", args: map[string]interface{}{"deck_id": deck.ID, "card_id": cardID, "quality": float64(3), "response_time_ms": float64(-1)}, kind: "validation"},
		{name: "unknown card", args: map[string]interface{}{"deck_id": deck.ID, "card_id": "nope", "quality": float64(3)}, kind: "not_found"},
		{name: "unknown deck", args: map[string]interface{}{"deck_id": "nope", "card_id": cardID, "quality": float64(3)}, kind: "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, svc, handleSubmitReview, "submit_review", tt.args)
			requireToolError(t, result, tt.kind)
		})
	}
}

func TestHandleListAndDeleteDecks(t *testing.T) {
	svc, _, _ := newTestService(t)
	deck := generateGreetings(t, svc)

	var list ListDecksResponse
	decodeResult(t, callTool(t, svc, handleListDecks, "list_decks", nil), &list)
	require.Len(t, list.Decks, 1)
	assert.Equal(t, deck.ID, list.Decks[0].ID)
	assert.Equal(t, 3, list.Decks[0].CardCount)

	result := callTool(t, svc, handleDeleteDeck, "delete_deck", map[string]interface{}{"deck_id": deck.ID})
	var deleted DeleteDeckResponse
	decodeResult(t, result, &deleted)
	assert.True(t, deleted.Success)

	result = callTool(t, svc, handleDeleteDeck, "delete_deck", map[string]interface{}{"deck_id": deck.ID})
	requireToolError(t, result, "not_found")

	decodeResult(t, callTool(t, svc, handleListDecks, "list_decks", nil), &list)
	assert.Empty(t, list.Decks)
}

func TestHandleDecksSummaryResource(t *testing.T) {
	svc, _, _ := newTestService(t)
	deck := generateGreetings(t, svc)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "decks://summary"
	contents, err := handleDecksSummaryResource(withService(context.Background(), svc), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok, "expected TextResourceContents, got %T", contents[0])
	assert.Equal(t, "decks://summary", text.URI)
	assert.Equal(t, "application/json", text.MIMEType)

	var summaries []DeckSummary
	require.NoError(t, json.Unmarshal([]byte(text.Text), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, deck.ID, summaries[0].ID)
}

func TestHandlersWithoutService(t *testing.T) {
	_, err := handleListDecks(context.Background(), mcp.CallToolRequest{})
	assert.Error(t, err)
}

func TestNewMCPServer(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.NotNil(t, newMCPServer(svc, Version))
}
