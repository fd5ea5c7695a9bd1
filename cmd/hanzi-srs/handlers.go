package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/danieldreier/hanzi-srs/internal/srs"
	"github.com/mark3labs/mcp-go/mcp"
)

type serviceKey struct{}

// withService returns a context carrying s for the tool handlers.
func withService(ctx context.Context, s *DeckService) context.Context {
	return context.WithValue(ctx, serviceKey{}, s)
}

func serviceFrom(ctx context.Context) (*DeckService, error) {
	s, ok := ctx.Value(serviceKey{}).(*DeckService)
	if !ok || s == nil {
		return nil, fmt.Errorf("service not available")
	}
	return s, nil
}

// handleGenerateDeck handles the generate_deck tool request by building a deck
// from a lesson and storing it.
func handleGenerateDeck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := serviceFrom(ctx)
	if err != nil {
		return nil, err
	}
	args := request.Params.Arguments

	req := srs.GenerateRequest{}
	if req.SourceID, err = requiredString(args, "source_id"); err != nil {
		return errorResult(err)
	}
	req.SourceType, _ = args["source_type"].(string)
	req.Name, _ = args["name"].(string)
	req.IncludeDefinitions, _ = args["include_definitions"].(bool)
	req.IncludeExamples, _ = args["include_examples"].(bool)
	if difficulty, ok := args["difficulty"].(string); ok {
		req.Difficulty = srs.Difficulty(difficulty)
	}
	req.Tags = stringSlice(args["tags"])

	limit, present, err := optionalInt(args, "card_limit")
	if err != nil {
		return errorResult(err)
	}
	if present {
		req.CardLimit = &limit
	}

	res, err := s.GenerateDeck(ctx, req)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

// handleListDecks handles the list_decks tool request.
func handleListDecks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := serviceFrom(ctx)
	if err != nil {
		return nil, err
	}
	decks, err := s.ListDecks(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(ListDecksResponse{Decks: decks})
}

// handleGetDueCards handles the get_due_cards tool request by returning the
// due queue of a deck, optionally filtered by tags and truncated to limit.
func handleGetDueCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := serviceFrom(ctx)
	if err != nil {
		return nil, err
	}
	args := request.Params.Arguments

	deckID, err := requiredString(args, "deck_id")
	if err != nil {
		return errorResult(err)
	}
	limit, _, err := optionalInt(args, "limit")
	if err != nil {
		return errorResult(err)
	}

	res, err := s.DueCards(ctx, deckID, stringSlice(args["tags"]), limit)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(DueCardsResponse{DeckID: deckID, DueQueueResult: res})
}

// handleSubmitReview handles the submit_review tool request by rating one card
// with an SM-2 quality from 0 to 5.
func handleSubmitReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := serviceFrom(ctx)
	if err != nil {
		return nil, err
	}
	args := request.Params.Arguments

	deckID, err := requiredString(args, "deck_id")
	if err != nil {
		return errorResult(err)
	}
	req := srs.ReviewRequest{}
	if req.CardID, err = requiredString(args, "card_id"); err != nil {
		return errorResult(err)
	}
	quality, present, err := optionalInt(args, "quality")
	if err != nil {
		return errorResult(err)
	}
	if !present {
		return errorResult(missingParam("quality"))
	}
	req.Quality = quality

	responseTime, present, err := optionalInt(args, "response_time_ms")
	if err != nil {
		return errorResult(err)
	}
	if present {
		req.ResponseTimeMs = &responseTime
	}

	res, err := s.SubmitReview(ctx, deckID, req)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(ReviewResponse{Success: true, DeckID: deckID, ReviewResult: res})
}

// handleDeckStats handles the deck_stats tool request.
func handleDeckStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := serviceFrom(ctx)
	if err != nil {
		return nil, err
	}
	deckID, err := requiredString(request.Params.Arguments, "deck_id")
	if err != nil {
		return errorResult(err)
	}
	stats, err := s.Stats(ctx, deckID)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(stats)
}

// handleDeleteDeck handles the delete_deck tool request.
func handleDeleteDeck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := serviceFrom(ctx)
	if err != nil {
		return nil, err
	}
	deckID, err := requiredString(request.Params.Arguments, "deck_id")
	if err != nil {
		return errorResult(err)
	}
	if err := s.DeleteDeck(ctx, deckID); err != nil {
		return errorResult(err)
	}
	return jsonResult(DeleteDeckResponse{Success: true, Message: "Deck " + deckID + " deleted"})
}

// handleDecksSummaryResource serves the decks://summary resource.
func handleDecksSummaryResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s, err := serviceFrom(ctx)
	if err != nil {
		return nil, err
	}
	decks, err := s.ListDecks(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing decks: %w", err)
	}
	jsonBytes, err := json.MarshalIndent(decks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshaling deck summaries: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// errorResult renders err as {"error": {"kind": ..., "message": ...}}.
func errorResult(err error) (*mcp.CallToolResult, error) {
	result, marshalErr := jsonResult(newErrorResponse(err))
	if marshalErr != nil {
		return nil, marshalErr
	}
	result.IsError = true
	return result, nil
}

func missingParam(name string) error {
	return srs.NewError(srs.KindValidation, "parameters", nil, "missing required parameter: %s", name)
}

func requiredString(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", missingParam(name)
	}
	return v, nil
}

// optionalInt reads a whole JSON number. JSON numbers arrive as float64.
func optionalInt(args map[string]interface{}, name string) (int, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, false, srs.NewError(srs.KindValidation, "parameters", nil,
			"parameter %s must be an integer, got %v", name, raw)
	}
	return int(f), true, nil
}

func stringSlice(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
