package main

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const serverInstructions = `
This server schedules Mandarin vocabulary flashcards with the SM-2 algorithm.

1. Create a deck from a lesson with generate_deck, or pick one from list_decks.
2. Ask for the next cards with get_due_cards. Show the learner only the front
   (the characters) and let them answer before revealing the back.
3. Rate every answer with submit_review using a quality from 0 to 5:
   * 0-2: not recalled or wrong. The card starts over tomorrow.
   * 3: recalled with serious difficulty.
   * 4: recalled after some hesitation.
   * 5: perfect, immediate recall.
4. Use deck_stats to report progress, today's retention and the study streak.
`

// newMCPServer builds the MCP server exposing svc.
func newMCPServer(svc *DeckService, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Hanzi SRS",
		version,
		server.WithInstructions(serverInstructions),
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	generateDeckTool := mcp.NewTool("generate_deck",
		mcp.WithDescription("Generate a flashcard deck from the segments of a lesson and store it."),
		mcp.WithString("source_id",
			mcp.Required(),
			mcp.Description("ID of the lesson to build cards from"),
		),
		mcp.WithString("source_type",
			mcp.Description("Kind of source. Only \"lesson\" is supported"),
		),
		mcp.WithString("name",
			mcp.Description("Deck name. Defaults to \"<source_id> flashcards\""),
		),
		mcp.WithBoolean("include_definitions",
			mcp.Description("Put the definition on the back of each card"),
		),
		mcp.WithBoolean("include_examples",
			mcp.Description("Put the example sentence on the back of each card"),
		),
		mcp.WithNumber("card_limit",
			mcp.Description("Maximum number of cards, 1 to 100. Defaults to 20"),
		),
		mcp.WithString("difficulty",
			mcp.Description("beginner, intermediate or advanced"),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags applied to the deck and every card"),
		),
	)

	listDecksTool := mcp.NewTool("list_decks",
		mcp.WithDescription("List stored decks with their card and due counts."),
	)

	getDueCardsTool := mcp.NewTool("get_due_cards",
		mcp.WithDescription(
			"Get the cards of a deck that are due for review, earliest first. "+
				"Show only the front of a card until the learner has answered.",
		),
		mcp.WithString("deck_id",
			mcp.Required(),
			mcp.Description("The ID of the deck"),
		),
		mcp.WithArray("tags",
			mcp.Description("Only return cards carrying all of these tags"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of cards to return. 0 returns all"),
		),
	)

	submitReviewTool := mcp.NewTool("submit_review",
		mcp.WithDescription("Rate the learner's recall of one card and reschedule it."),
		mcp.WithString("deck_id",
			mcp.Required(),
			mcp.Description("The ID of the deck holding the card"),
		),
		mcp.WithString("card_id",
			mcp.Required(),
			mcp.Description("The ID of the card being reviewed"),
		),
		mcp.WithNumber("quality",
			mcp.Required(),
			mcp.Description("Recall quality from 0 (blackout) to 5 (perfect)"),
		),
		mcp.WithNumber("response_time_ms",
			mcp.Description("Time the learner took to answer, in milliseconds"),
		),
	)

	deckStatsTool := mcp.NewTool("deck_stats",
		mcp.WithDescription("Statistics for a deck, including today's reviews, retention rate and study streak."),
		mcp.WithString("deck_id",
			mcp.Required(),
			mcp.Description("The ID of the deck"),
		),
	)

	deleteDeckTool := mcp.NewTool("delete_deck",
		mcp.WithDescription("Delete a deck and its review history."),
		mcp.WithString("deck_id",
			mcp.Required(),
			mcp.Description("The ID of the deck to delete"),
		),
	)

	tools := []struct {
		tool    mcp.Tool
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
	}{
		{generateDeckTool, handleGenerateDeck},
		{listDecksTool, handleListDecks},
		{getDueCardsTool, handleGetDueCards},
		{submitReviewTool, handleSubmitReview},
		{deckStatsTool, handleDeckStats},
		{deleteDeckTool, handleDeleteDeck},
	}
	for _, t := range tools {
		handler := t.handler
		s.AddTool(t.tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handler(withService(ctx, svc), request)
		})
	}

	decksResource := mcp.NewResource("decks://summary", "Deck summary",
		mcp.WithResourceDescription("Every stored deck with its card and due counts"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(decksResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleDecksSummaryResource(withService(ctx, svc), request)
	})

	return s
}
