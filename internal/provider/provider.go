// Package provider abstracts the hosted chat-completion service: capability
// based model selection plus streaming completion requests. Two backends are
// implemented, GitHub Copilot (the default vendor) and OpenAI.
package provider

import (
	"context"
	"errors"

	"github.com/stylecopilot/stylecopilot/internal/conversation"
)

// ErrNoModel reports that no model matched the capability selector. Model
// availability is an environment precondition, not a user input error, so
// callers abort silently (logged, no document mutation, no user-facing error).
var ErrNoModel = errors.New("no chat model available for selector")

// Selector is the fixed capability selector used to pick a model.
type Selector struct {
	Vendor string
	Family string
}

// DefaultSelector is the shipped default. gpt-4o is fast and high quality;
// gpt-4 and gpt-3.5-turbo are also available.
var DefaultSelector = Selector{Vendor: "copilot", Family: "gpt-4o"}

// Options carries per-request tuning.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Model is a single selectable chat model. SendRequest streams the response:
// onFragment is invoked once per text fragment in emission order, and
// concatenating the fragments reconstructs the full response. The stream
// honors ctx cancellation; no fragments are delivered after cancel. A non-nil
// error from onFragment stops the stream and is returned unchanged.
type Model interface {
	ID() string
	Family() string
	// MaxInputTokens reports the model's input limit. Richer conversation
	// builders should respect it; the minimal builder does not enforce it.
	MaxInputTokens() int
	SendRequest(ctx context.Context, turns []conversation.Turn, opts Options, onFragment func(string) error) error
}

// Client is a completion-provider backend serving one vendor.
type Client interface {
	Vendor() string
	SelectModels(ctx context.Context, sel Selector) ([]Model, error)
}

// SelectFirst returns the first model matching the selector across the given
// clients, or ErrNoModel when nothing matches. Backend errors during listing
// are folded into ErrNoModel: an unreachable backend and an empty result are
// the same precondition failure for the caller.
func SelectFirst(ctx context.Context, clients []Client, sel Selector) (Model, error) {
	for _, c := range clients {
		if sel.Vendor != "" && c.Vendor() != sel.Vendor {
			continue
		}
		models, err := c.SelectModels(ctx, sel)
		if err != nil {
			continue
		}
		if len(models) > 0 {
			return models[0], nil
		}
	}
	return nil, ErrNoModel
}

// toRoleContent converts turns into role/content pairs shared by both wire
// formats.
func toRoleContent(turns []conversation.Turn) []struct{ Role, Content string } {
	out := make([]struct{ Role, Content string }, len(turns))
	for i, t := range turns {
		role := t.Role
		if role == "" {
			role = conversation.RoleUser
		}
		out[i].Role = role
		out[i].Content = t.Text
	}
	return out
}
