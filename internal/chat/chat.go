// Package chat implements the chat-participant surface: a free-text prompt
// with a leading slash-action token is resolved against the configured
// actions and streamed back as markdown fragments.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stylecopilot/stylecopilot/internal/action"
	"github.com/stylecopilot/stylecopilot/internal/conversation"
	"github.com/stylecopilot/stylecopilot/internal/editor"
	"github.com/stylecopilot/stylecopilot/internal/logging"
	"github.com/stylecopilot/stylecopilot/internal/provider"
	"github.com/stylecopilot/stylecopilot/internal/telemetry"
)

// Request is one user chat turn: the raw prompt plus optional structured
// document references.
type Request struct {
	Prompt string
	// ActivePath is the document open in the active editor, empty when
	// none.
	ActivePath string
	// Refs are paths of explicitly referenced documents, in user order.
	Refs []string
}

// ResponseStream receives the streamed reply. Markdown is called once per
// fragment in emission order; Button attaches a follow-up suggestion.
type ResponseStream interface {
	Progress(message string)
	Markdown(fragment string)
	Button(f action.Followup)
}

// Handler routes chat requests through the configured actions.
type Handler struct {
	registry *action.Registry
	clients  []provider.Client
	host     editor.Host
	sink     telemetry.Sink
	selector provider.Selector
	reqOpts  provider.Options
	log      *logrus.Entry
}

// NewHandler wires a chat handler from its collaborators.
func NewHandler(reg *action.Registry, clients []provider.Client, host editor.Host, sink telemetry.Sink, selector provider.Selector, reqOpts provider.Options) *Handler {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &Handler{
		registry: reg,
		clients:  clients,
		host:     host,
		sink:     sink,
		selector: selector,
		reqOpts:  reqOpts,
		log:      logging.Named("chat"),
	}
}

// Handle processes one chat request. An unmatched slash token is a silent
// no-op producing an empty result; only unclassified provider errors are
// returned, for the host's default error surface.
func (h *Handler) Handle(ctx context.Context, req Request, stream ResponseStream) error {
	act, ok := h.registry.Resolve(req.Prompt)
	if !ok {
		// Unmatched input must not surface an error to the chat panel.
		h.sink.RecordUsage("chat", nil)
		return nil
	}
	return h.runAction(ctx, act, req, stream)
}

func (h *Handler) runAction(ctx context.Context, act *action.ActionTemplate, req Request, stream ResponseStream) error {
	loading := act.LoadingLabel
	if loading == "" {
		loading = "Loading..."
	}
	stream.Progress(loading)

	model, err := provider.SelectFirst(ctx, h.clients, h.selector)
	if err != nil {
		if errors.Is(err, provider.ErrNoModel) {
			h.log.Info("model not found, make sure a chat provider is authenticated")
			h.sink.RecordUsage("no_model", map[string]string{"action": act.ID})
			return nil
		}
		return err
	}

	turns, err := h.buildTurns(act, req)
	if err != nil {
		return err
	}

	streamErr := model.SendRequest(ctx, turns, h.reqOpts, func(fragment string) error {
		stream.Markdown(fragment)
		return nil
	})
	if streamErr != nil {
		h.sink.RecordError(streamErr)
		if ce := provider.Classify(streamErr); ce != nil {
			// Known provider behavior: the chat surface gets exactly
			// the fixed friendly message, nothing else.
			h.log.WithField("cause", string(ce.Type)).Info("completion refused")
			stream.Markdown(ce.UserMessage())
			return nil
		}
		return streamErr
	}

	h.sink.RecordUsage("action_run", map[string]string{"action": act.ID, "model": model.ID()})
	for _, up := range h.registry.Followups() {
		stream.Button(up)
	}
	return nil
}

// buildTurns assembles the conversation: stripped template prompt, the active
// document when one is open and non-empty, then each referenced document in
// request order.
func (h *Handler) buildTurns(act *action.ActionTemplate, req Request) ([]conversation.Turn, error) {
	activeText := ""
	if req.ActivePath != "" {
		doc, err := h.host.OpenDocument(req.ActivePath)
		if err != nil {
			return nil, err
		}
		activeText = doc.Text()
	}

	refs := make([]string, 0, len(req.Refs))
	for _, path := range req.Refs {
		doc, err := h.host.OpenDocument(path)
		if err != nil {
			return nil, err
		}
		refs = append(refs, doc.Text())
	}

	return conversation.Build(act.Prompt, act.ID, activeText, refs), nil
}

// CollectResponse is a ResponseStream that buffers the full reply, for
// non-interactive surfaces that render once at the end.
type CollectResponse struct {
	Fragments []string
	Followups []action.Followup
	Loading   string
}

func (c *CollectResponse) Progress(message string)  { c.Loading = message }
func (c *CollectResponse) Markdown(fragment string) { c.Fragments = append(c.Fragments, fragment) }
func (c *CollectResponse) Button(f action.Followup) { c.Followups = append(c.Followups, f) }
func (c *CollectResponse) Text() string             { return strings.Join(c.Fragments, "") }
