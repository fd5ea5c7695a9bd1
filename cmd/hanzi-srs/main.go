// Package main provides the hanzi-srs binary: an SM-2 flashcard scheduler for
// Mandarin lessons, usable from the command line or as an MCP stdio server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/danieldreier/hanzi-srs/internal/config"
	"github.com/danieldreier/hanzi-srs/internal/lesson"
	"github.com/danieldreier/hanzi-srs/internal/srs"
	"github.com/danieldreier/hanzi-srs/internal/storage"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	Version = "0.1.0"
	appName = "hanzi-srs"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "SM-2 spaced repetition for Mandarin lessons",
		Long: `hanzi-srs turns segmented Mandarin lessons into flashcard decks and
schedules their reviews with the SM-2 algorithm.

Configuration comes from flags, an optional YAML file (--config) and
HANZI_SRS_ environment variables such as HANZI_SRS_STORAGE_DRIVER.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		serveCmd(),
		generateCmd(),
		decksCmd(),
		lessonsCmd(),
		dueCmd(),
		reviewCmd(),
		statsCmd(),
		deleteCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("serving MCP over stdio",
				zap.String("storage_driver", a.cfg.Storage.Driver),
				zap.String("storage_path", a.cfg.Storage.Path))
			if err := server.ServeStdio(newMCPServer(a.svc, Version)); err != nil {
				return fmt.Errorf("error serving MCP server: %w", err)
			}
			return nil
		},
	}
}

func generateCmd() *cobra.Command {
	var (
		req   srs.GenerateRequest
		limit int
		diff  string
	)
	cmd := &cobra.Command{
		Use:   "generate <lesson-id>",
		Short: "Generate a deck from a lesson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SourceID = args[0]
			req.Difficulty = srs.Difficulty(diff)
			if cmd.Flags().Changed("limit") {
				req.CardLimit = &limit
			}
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.svc.GenerateDeck(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Deck name")
	cmd.Flags().BoolVar(&req.IncludeDefinitions, "definitions", false, "Include definitions on the back of cards")
	cmd.Flags().BoolVar(&req.IncludeExamples, "examples", false, "Include example sentences on the back of cards")
	cmd.Flags().IntVar(&limit, "limit", srs.DefaultCardLimit, "Maximum number of cards")
	cmd.Flags().StringVar(&diff, "difficulty", "", "beginner, intermediate or advanced")
	cmd.Flags().StringSliceVar(&req.Tags, "tags", nil, "Tags for the deck and its cards")
	return cmd
}

func decksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decks",
		Short: "List stored decks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				decks, err := a.svc.ListDecks(ctx)
				return ListDecksResponse{Decks: decks}, err
			})
		},
	}
}

func lessonsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lessons",
		Short: "List the lessons available for deck generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				type lessonInfo struct {
					ID       string `json:"id"`
					Title    string `json:"title"`
					Segments int    `json:"segments"`
				}
				infos := []lessonInfo{}
				for _, l := range a.lessons.List() {
					infos = append(infos, lessonInfo{ID: l.ID, Title: l.Title, Segments: len(l.Segments)})
				}
				return infos, nil
			})
		},
	}
}

func dueCmd() *cobra.Command {
	var (
		tags  []string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "due <deck-id>",
		Short: "Show the cards of a deck that are due for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				res, err := a.svc.DueCards(ctx, args[0], tags, limit)
				return DueCardsResponse{DeckID: args[0], DueQueueResult: res}, err
			})
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Only show cards carrying all of these tags")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of cards to show (0 shows all)")
	return cmd
}

func reviewCmd() *cobra.Command {
	var responseTime int
	cmd := &cobra.Command{
		Use:   "review <deck-id> <card-id> <quality>",
		Short: "Record a review of one card with a quality from 0 to 5",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			quality, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("quality must be an integer from 0 to 5: %w", err)
			}
			req := srs.ReviewRequest{CardID: args[1], Quality: quality}
			if cmd.Flags().Changed("response-time") {
				req.ResponseTimeMs = &responseTime
			}
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				res, err := a.svc.SubmitReview(ctx, args[0], req)
				return ReviewResponse{Success: err == nil, DeckID: args[0], ReviewResult: res}, err
			})
		},
	}
	cmd.Flags().IntVar(&responseTime, "response-time", 0, "Answer time in milliseconds")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <deck-id>",
		Short: "Show deck statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.svc.Stats(ctx, args[0])
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <deck-id>",
		Short: "Delete a deck and its review history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				err := a.svc.DeleteDeck(ctx, args[0])
				return DeleteDeckResponse{Success: err == nil, Message: "Deck " + args[0] + " deleted"}, err
			})
		},
	}
}

// app holds everything a command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   storage.Store
	lessons *lesson.FileSource
	svc     *DeckService
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	scheduler, err := srs.NewScheduler(cfg.Scheduler)
	if err != nil {
		return nil, err
	}

	lessons := lesson.NewFileSource(cfg.Lessons.Path, logger)
	if err := lessons.Load(); err != nil {
		return nil, fmt.Errorf("error loading lessons: %w", err)
	}

	store, err := openStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		lessons: lessons,
		svc:     NewDeckService(store, lessons, scheduler, logger),
	}, nil
}

func (a *app) Close() error {
	err := a.store.Close()
	_ = a.logger.Sync()
	return err
}

// withApp runs fn and prints its result, or the error response, as JSON.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) (any, error)) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(cmd.Context(), a)
	if err != nil {
		if printErr := printJSON(cmd.OutOrStdout(), newErrorResponse(err)); printErr != nil {
			return printErr
		}
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func openStore(cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return storage.OpenSQLite(cfg.Path, logger)
	default:
		fs := storage.NewFileStorage(cfg.Path, logger)
		if err := fs.Load(); err != nil {
			return nil, fmt.Errorf("error loading storage: %w", err)
		}
		return fs, nil
	}
}

// newLogger builds a zap logger writing to stderr, so stdout stays free for
// command output and the MCP stdio channel.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	logConfig := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		logConfig = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)
	logConfig.OutputPaths = []string{"stderr"}
	logConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := logConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("error initializing zap logger: %w", err)
	}
	return logger.Named(appName), nil
}
