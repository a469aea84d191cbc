// Package workflow implements the diff/apply pipeline behind custom editor
// commands: select a model, stream a full-file rewrite, show it as a
// comparison view, and replace the document only after the user accepts.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stylecopilot/stylecopilot/internal/action"
	"github.com/stylecopilot/stylecopilot/internal/conversation"
	"github.com/stylecopilot/stylecopilot/internal/editor"
	"github.com/stylecopilot/stylecopilot/internal/logging"
	"github.com/stylecopilot/stylecopilot/internal/provider"
	"github.com/stylecopilot/stylecopilot/internal/telemetry"
)

// State is a stage of the diff/apply pipeline. Applied and Discarded are the
// terminal decisions; both converge to Cleaned once the temporary artifact is
// removed.
type State int

const (
	StateIdle State = iota
	StateModelSelected
	StateResponseStreamed
	StateCandidateWritten
	StateAwaitingDecision
	StateApplied
	StateDiscarded
	StateCleaned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateModelSelected:
		return "model_selected"
	case StateResponseStreamed:
		return "response_streamed"
	case StateCandidateWritten:
		return "candidate_written"
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateApplied:
		return "applied"
	case StateDiscarded:
		return "discarded"
	case StateCleaned:
		return "cleaned"
	default:
		return "unknown"
	}
}

// Options tunes a Runner.
type Options struct {
	Selector provider.Selector
	Request  provider.Options

	// FallbackEditOnStreamError appends the error text of a mid-stream
	// failure into the live document instead of only surfacing it as a
	// notice. Off, the document is left untouched.
	FallbackEditOnStreamError bool

	// TempDir overrides the temp artifact location. Empty uses the
	// system default.
	TempDir string
}

// Result reports where a run ended up. Final is the last state before
// cleanup; Applied and Discarded are the only states reached through a user
// decision, anything earlier means the run aborted.
type Result struct {
	Final     State
	Decision  State // StateApplied or StateDiscarded once a decision was made
	SessionID string
	Candidate string
}

// Applied reports whether the run ended with the candidate written back.
func (r *Result) Applied() bool { return r.Decision == StateApplied }

// Runner executes the diff/apply pipeline. Host and Telemetry are injected
// collaborators; one Runner serves any number of sequential or concurrent
// invocations, each with its own uniquely named temp artifact.
type Runner struct {
	host    editor.Host
	clients []provider.Client
	sink    telemetry.Sink
	opts    Options
	log     *logrus.Entry
}

// NewRunner wires a runner from its collaborators.
func NewRunner(host editor.Host, clients []provider.Client, sink telemetry.Sink, opts Options) *Runner {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &Runner{
		host:    host,
		clients: clients,
		sink:    sink,
		opts:    opts,
		log:     logging.Named("workflow"),
	}
}

// Run executes one command invocation against the document. The document is
// mutated only on an explicit accept (with the documented mid-stream fallback
// as the single exception). An error return means an unclassified failure
// that the caller should surface through the host's default error reporting.
func (r *Runner) Run(ctx context.Context, cmd action.CommandTemplate, doc editor.Document) (*Result, error) {
	result := &Result{Final: StateIdle}

	model, err := provider.SelectFirst(ctx, r.clients, r.opts.Selector)
	if err != nil {
		if errors.Is(err, provider.ErrNoModel) {
			// Environment precondition, not a user error: abort silently.
			r.log.WithField("selector", fmt.Sprintf("%s/%s", r.opts.Selector.Vendor, r.opts.Selector.Family)).
				Info("model not found, make sure a chat provider is authenticated")
			r.sink.RecordUsage("no_model", map[string]string{"command": cmd.ID})
			return result, nil
		}
		return result, err
	}
	result.Final = StateModelSelected
	r.log.WithFields(logrus.Fields{"command": cmd.ID, "model": model.ID()}).Debug("model selected")

	r.host.ShowInfo(fmt.Sprintf("StyleCopilot [%s]", cmd.ID))

	turns := conversation.Build(cmd.Prompt, cmd.ID, doc.Text(), nil)

	var sb strings.Builder
	streamErr := model.SendRequest(ctx, turns, r.opts.Request, func(fragment string) error {
		sb.WriteString(fragment)
		return nil
	})
	if streamErr != nil {
		return result, r.recoverStreamFailure(cmd, doc, streamErr, sb.Len() > 0)
	}
	result.Final = StateResponseStreamed
	result.Candidate = sb.String()

	session, err := newSession(doc, result.Candidate, r.opts.TempDir)
	if err != nil {
		return result, fmt.Errorf("failed to write candidate: %w", err)
	}
	result.Final = StateCandidateWritten
	result.SessionID = session.ID
	defer r.cleanup(session, result)

	title := fmt.Sprintf("StyleCopilot: [%s] %s", cmd.ID, session.ID)
	if err := r.host.ShowDiff(ctx, title, doc, session.TempPath); err != nil {
		return result, err
	}

	result.Final = StateAwaitingDecision
	accepted, err := r.host.Confirm(ctx, fmt.Sprintf("Accept changes? [%s] %s", cmd.ID, session.ID))
	if err != nil {
		return result, err
	}

	if !accepted {
		// Any answer other than an explicit accept discards.
		result.Final = StateDiscarded
		result.Decision = StateDiscarded
		r.sink.RecordUsage("discarded", map[string]string{"command": cmd.ID, "model": model.ID()})
		return result, nil
	}

	if err := r.apply(doc, result.Candidate); err != nil {
		r.host.ShowError("Failed to apply changes.")
		r.sink.RecordError(err)
		result.Final = StateDiscarded
		result.Decision = StateDiscarded
		return result, nil
	}
	result.Final = StateApplied
	result.Decision = StateApplied
	r.host.ShowInfo("✅ Changes applied successfully.")
	r.sink.RecordUsage("applied", map[string]string{"command": cmd.ID, "model": model.ID()})
	return result, nil
}

// apply replaces the document's entire content in a single edit and persists
// it. The replace is validated before save; a rejected edit never falls
// through to save.
func (r *Runner) apply(doc editor.Document, candidate string) error {
	if err := doc.Replace(candidate); err != nil {
		return fmt.Errorf("replace rejected: %w", err)
	}
	if err := doc.Save(); err != nil {
		return fmt.Errorf("save failed: %w", err)
	}
	return nil
}

// recoverStreamFailure handles an error from the completion stream. Known
// provider refusals are absorbed into a notice. A failure after fragments
// already arrived surfaces an error notice and, when configured, also appends
// the error text into the live document. Unknown pre-stream errors propagate.
func (r *Runner) recoverStreamFailure(cmd action.CommandTemplate, doc editor.Document, streamErr error, midStream bool) error {
	r.sink.RecordError(streamErr)

	if ce := provider.Classify(streamErr); ce != nil {
		r.log.WithFields(logrus.Fields{"command": cmd.ID, "cause": string(ce.Type)}).Info("completion failed")
		r.host.ShowError(ce.UserMessage())
		return nil
	}

	if midStream {
		r.log.WithError(streamErr).Warn("response stream interrupted")
		if r.opts.FallbackEditOnStreamError {
			// The fallback edit lands in the in-memory document only;
			// hosts without a visible dirty buffer still need the
			// notice for the interruption to be observable.
			_ = doc.Replace(doc.Text() + streamErr.Error())
		}
		r.host.ShowError(streamErr.Error())
		return nil
	}
	return streamErr
}

// cleanup closes the comparison view and removes the temp artifact, then
// marks the run cleaned. Runs exactly once per invocation on every exit path
// after the candidate was written.
func (r *Runner) cleanup(session *Session, result *Result) {
	r.host.CloseDiff(session.TempPath)
	if err := session.Remove(); err != nil {
		r.log.WithError(err).Debug("temp artifact cleanup failed")
	}
	result.Final = terminalState(result.Final)
}

// terminalState folds a decision state into Cleaned; earlier abort states are
// preserved so callers can see where the run stopped.
func terminalState(s State) State {
	if s == StateApplied || s == StateDiscarded {
		return StateCleaned
	}
	return s
}
