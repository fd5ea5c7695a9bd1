// Package srs schedules flashcard reviews with an adapted SuperMemo SM-2
// algorithm.
//
// A Factory turns annotated text segments into a Deck of new cards. A
// Reviewer applies a quality rating to one card through a Scheduler, which
// computes the next interval and ease factor. DueQueue and Summarize are
// read-only views over a deck.
//
// Everything in this package is synchronous and free of I/O. A Deck is not
// safe for concurrent mutation; callers that share one across goroutines must
// serialize reviews themselves.
package srs
