package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylecopilot/stylecopilot/internal/action"
	"github.com/stylecopilot/stylecopilot/internal/conversation"
	"github.com/stylecopilot/stylecopilot/internal/editor"
	"github.com/stylecopilot/stylecopilot/internal/provider"
)

// ─── Fakes ───

type fakeDoc struct {
	path       string
	text       string
	saved      bool
	replaceErr error
	saveErr    error
}

func (d *fakeDoc) Path() string { return d.path }
func (d *fakeDoc) Text() string { return d.text }
func (d *fakeDoc) Replace(text string) error {
	if d.replaceErr != nil {
		return d.replaceErr
	}
	d.text = text
	return nil
}
func (d *fakeDoc) Save() error {
	if d.saveErr != nil {
		return d.saveErr
	}
	d.saved = true
	return nil
}

type fakeHost struct {
	accept      bool
	confirmErr  error
	diffShown   []string
	diffClosed  []string
	infos       []string
	errNotices  []string
	confirmMsgs []string
}

func (h *fakeHost) OpenDocument(path string) (editor.Document, error) {
	return &fakeDoc{path: path}, nil
}
func (h *fakeHost) ShowDiff(ctx context.Context, title string, original editor.Document, candidatePath string) error {
	h.diffShown = append(h.diffShown, candidatePath)
	return nil
}
func (h *fakeHost) CloseDiff(candidatePath string) {
	h.diffClosed = append(h.diffClosed, candidatePath)
}
func (h *fakeHost) Confirm(ctx context.Context, message string) (bool, error) {
	h.confirmMsgs = append(h.confirmMsgs, message)
	return h.accept, h.confirmErr
}
func (h *fakeHost) QuickPick(ctx context.Context, placeholder string, items []string) (string, bool) {
	return "", false
}
func (h *fakeHost) ShowInfo(message string)  { h.infos = append(h.infos, message) }
func (h *fakeHost) ShowError(message string) { h.errNotices = append(h.errNotices, message) }

type fakeModel struct {
	id        string
	fragments []string
	err       error
	gotTurns  []conversation.Turn
}

func (m *fakeModel) ID() string          { return m.id }
func (m *fakeModel) Family() string      { return "gpt-4o" }
func (m *fakeModel) MaxInputTokens() int { return 128000 }
func (m *fakeModel) SendRequest(ctx context.Context, turns []conversation.Turn, opts provider.Options, onFragment func(string) error) error {
	m.gotTurns = turns
	for _, f := range m.fragments {
		if err := onFragment(f); err != nil {
			return err
		}
	}
	return m.err
}

type fakeClient struct {
	vendor string
	models []provider.Model
}

func (c *fakeClient) Vendor() string { return c.vendor }
func (c *fakeClient) SelectModels(ctx context.Context, sel provider.Selector) ([]provider.Model, error) {
	return c.models, nil
}

type recordingSink struct {
	events []string
	errs   []error
}

func (s *recordingSink) RecordUsage(event string, attrs map[string]string) {
	s.events = append(s.events, event)
}
func (s *recordingSink) RecordError(err error) { s.errs = append(s.errs, err) }

// ─── Helpers ───

var tidyCmd = action.CommandTemplate{ID: "tidy", Description: "Tidy", Prompt: "Tidy this code"}

func runnerWith(t *testing.T, host *fakeHost, model *fakeModel, accept bool) (*Runner, *recordingSink) {
	t.Helper()
	host.accept = accept
	sink := &recordingSink{}
	clients := []provider.Client{&fakeClient{vendor: "copilot", models: []provider.Model{model}}}
	r := NewRunner(host, clients, sink, Options{
		Selector: provider.Selector{Vendor: "copilot", Family: "gpt-4o"},
		TempDir:  t.TempDir(),
	})
	return r, sink
}

// ─── Tests ───

func TestRunAcceptAppliesAndSaves(t *testing.T) {
	host := &fakeHost{}
	model := &fakeModel{id: "gpt-4o", fragments: []string{"package main\n", "\nfunc main() {}\n"}}
	r, sink := runnerWith(t, host, model, true)
	doc := &fakeDoc{path: "main.go", text: "old content"}

	result, err := r.Run(context.Background(), tidyCmd, doc)
	require.NoError(t, err)

	assert.Equal(t, "package main\n\nfunc main() {}\n", doc.text)
	assert.True(t, doc.saved)
	assert.True(t, result.Applied())
	assert.Equal(t, StateCleaned, result.Final)
	assert.Contains(t, sink.events, "applied")
	assert.Contains(t, host.infos, "✅ Changes applied successfully.")
}

func TestRunRejectLeavesDocumentUnchanged(t *testing.T) {
	host := &fakeHost{}
	model := &fakeModel{id: "gpt-4o", fragments: []string{"rewritten"}}
	r, sink := runnerWith(t, host, model, false)
	doc := &fakeDoc{path: "main.go", text: "old content"}

	result, err := r.Run(context.Background(), tidyCmd, doc)
	require.NoError(t, err)

	assert.Equal(t, "old content", doc.text)
	assert.False(t, doc.saved)
	assert.False(t, result.Applied())
	assert.Equal(t, StateDiscarded, result.Decision)
	assert.Equal(t, StateCleaned, result.Final)
	assert.Contains(t, sink.events, "discarded")
}

func TestRunCleansTempArtifactOnBothOutcomes(t *testing.T) {
	for _, accept := range []bool{true, false} {
		host := &fakeHost{}
		model := &fakeModel{id: "gpt-4o", fragments: []string{"x"}}
		r, _ := runnerWith(t, host, model, accept)
		doc := &fakeDoc{path: "main.go", text: "y"}

		_, err := r.Run(context.Background(), tidyCmd, doc)
		require.NoError(t, err)

		require.Len(t, host.diffShown, 1)
		tempPath := host.diffShown[0]
		assert.Equal(t, host.diffClosed, host.diffShown)
		_, statErr := os.Stat(tempPath)
		assert.True(t, os.IsNotExist(statErr), "temp artifact should be removed (accept=%v)", accept)
	}
}

func TestRunTempArtifactNamingAndContent(t *testing.T) {
	host := &fakeHost{}
	model := &fakeModel{id: "gpt-4o", fragments: []string{"candidate text"}}
	r, _ := runnerWith(t, host, model, false)
	doc := &fakeDoc{path: filepath.Join("src", "main.go"), text: "old"}

	result, err := r.Run(context.Background(), tidyCmd, doc)
	require.NoError(t, err)

	require.Len(t, host.diffShown, 1)
	name := filepath.Base(host.diffShown[0])
	assert.Equal(t, tempPrefix+result.SessionID+".go", name)
}

func TestRunNoModelAbortsSilently(t *testing.T) {
	host := &fakeHost{}
	sink := &recordingSink{}
	r := NewRunner(host, nil, sink, Options{
		Selector: provider.Selector{Vendor: "copilot", Family: "gpt-4o"},
	})
	doc := &fakeDoc{path: "main.go", text: "old"}

	result, err := r.Run(context.Background(), tidyCmd, doc)
	require.NoError(t, err)

	assert.Equal(t, "old", doc.text)
	assert.Empty(t, host.infos)
	assert.Empty(t, host.errNotices)
	assert.Equal(t, StateIdle, result.Final)
	assert.Contains(t, sink.events, "no_model")
}

func TestRunRefusalShowsFixedMessage(t *testing.T) {
	host := &fakeHost{}
	model := &fakeModel{id: "gpt-4o", err: errors.New("response filtered as off_topic content")}
	r, _ := runnerWith(t, host, model, true)
	doc := &fakeDoc{path: "main.go", text: "old"}

	result, err := r.Run(context.Background(), tidyCmd, doc)
	require.NoError(t, err)

	assert.Equal(t, "old", doc.text)
	assert.Equal(t, StateModelSelected, result.Final)
	require.Len(t, host.errNotices, 1)
	assert.Equal(t, provider.RefusalMessage, host.errNotices[0])
}

func TestRunMidStreamFailureFallbackEdit(t *testing.T) {
	host := &fakeHost{}
	model := &fakeModel{id: "gpt-4o", fragments: []string{"partial"}, err: errors.New("connection reset")}
	sink := &recordingSink{}
	clients := []provider.Client{&fakeClient{vendor: "copilot", models: []provider.Model{model}}}
	r := NewRunner(host, clients, sink, Options{
		Selector:                  provider.Selector{Vendor: "copilot", Family: "gpt-4o"},
		FallbackEditOnStreamError: true,
	})
	doc := &fakeDoc{path: "main.go", text: "old"}

	_, err := r.Run(context.Background(), tidyCmd, doc)
	require.NoError(t, err)

	assert.Equal(t, "old"+"connection reset", doc.text)
	assert.False(t, doc.saved)
	// The fallback edit alone is invisible on hosts without a dirty
	// buffer, so the notice must accompany it.
	assert.Equal(t, []string{"connection reset"}, host.errNotices)
	require.Len(t, sink.errs, 1)
}

func TestRunMidStreamFailureWithoutFallback(t *testing.T) {
	host := &fakeHost{}
	model := &fakeModel{id: "gpt-4o", fragments: []string{"partial"}, err: errors.New("connection reset")}
	r, _ := runnerWith(t, host, model, true)
	r.opts.FallbackEditOnStreamError = false
	doc := &fakeDoc{path: "main.go", text: "old"}

	_, err := r.Run(context.Background(), tidyCmd, doc)
	require.NoError(t, err)

	assert.Equal(t, "old", doc.text)
	assert.Equal(t, []string{"connection reset"}, host.errNotices)
}

func TestRunPreStreamUnknownErrorPropagates(t *testing.T) {
	host := &fakeHost{}
	model := &fakeModel{id: "gpt-4o", err: errors.New("dial tcp: timeout")}
	r, _ := runnerWith(t, host, model, true)
	doc := &fakeDoc{path: "main.go", text: "old"}

	_, err := r.Run(context.Background(), tidyCmd, doc)
	require.Error(t, err)
	assert.Equal(t, "old", doc.text)
}

func TestRunApplyFailureSkipsSave(t *testing.T) {
	host := &fakeHost{}
	model := &fakeModel{id: "gpt-4o", fragments: []string{"rewritten"}}
	r, sink := runnerWith(t, host, model, true)
	doc := &fakeDoc{path: "main.go", text: "old", replaceErr: errors.New("document gone")}

	result, err := r.Run(context.Background(), tidyCmd, doc)
	require.NoError(t, err)

	assert.False(t, doc.saved)
	assert.False(t, result.Applied())
	assert.Contains(t, host.errNotices, "Failed to apply changes.")
	require.Len(t, sink.errs, 1)
	assert.NotContains(t, sink.events, "applied")
}

func TestRunConversationIncludesDocumentText(t *testing.T) {
	host := &fakeHost{}
	model := &fakeModel{id: "gpt-4o", fragments: []string{"x"}}
	r, _ := runnerWith(t, host, model, false)
	doc := &fakeDoc{path: "main.go", text: "let a=1"}

	_, err := r.Run(context.Background(), tidyCmd, doc)
	require.NoError(t, err)

	require.Len(t, model.gotTurns, 2)
	assert.Equal(t, "Tidy this code", model.gotTurns[0].Text)
	assert.Equal(t, "let a=1", model.gotTurns[1].Text)
}

func TestSessionRemoveIdempotent(t *testing.T) {
	doc := &fakeDoc{path: "main.go", text: "old"}
	session, err := newSession(doc, "candidate", t.TempDir())
	require.NoError(t, err)

	require.NoError(t, session.Remove())
	require.NoError(t, session.Remove())
	_, statErr := os.Stat(session.TempPath)
	assert.True(t, os.IsNotExist(statErr))
}
