// Package chat generates conversational replies through an
// OpenAI-compatible chat completion API, keeping a running transcript
// across turns within one session.
package chat

import "context"

// Replier generates a reply to one user message. Implementations keep
// their own conversation context across calls.
type Replier interface {
	// Reply appends the user message to the running transcript and
	// returns the assistant's answer.
	Reply(ctx context.Context, text string) (string, error)

	// Reset clears the transcript back to the system prompt.
	Reset()

	// Close releases resources.
	Close() error
}
