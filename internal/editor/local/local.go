// Package local implements the editor.Host capability interface on top of the
// local filesystem and terminal. Documents are files; the comparison view is
// rendered in the terminal; prompts use an interactive picker when stdin is a
// TTY and plain line input otherwise.
package local

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/stylecopilot/stylecopilot/internal/editor"
	"github.com/stylecopilot/stylecopilot/internal/logging"
	"github.com/stylecopilot/stylecopilot/internal/tui"
)

// Document is a file-backed document handle. Text lives in memory between
// Replace and Save; Save writes back with the file's original mode.
type Document struct {
	path string
	text string
	mode os.FileMode
}

// Open reads the file at path into a document handle.
func Open(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open document: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return &Document{path: path, text: string(data), mode: info.Mode()}, nil
}

func (d *Document) Path() string { return d.path }
func (d *Document) Text() string { return d.text }

// Replace swaps the full content in one edit. The edit is rejected when the
// backing file has disappeared under us, which is the local equivalent of the
// host refusing a workspace edit.
func (d *Document) Replace(content string) error {
	if _, err := os.Stat(d.path); err != nil {
		return fmt.Errorf("edit rejected: %w", err)
	}
	d.text = content
	return nil
}

// Save persists the current content to the backing file.
func (d *Document) Save() error {
	return os.WriteFile(d.path, []byte(d.text), d.mode.Perm())
}

// Host is the terminal-backed editor host.
type Host struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	width       int

	mu        sync.Mutex
	openDiffs map[string]bool
}

// NewHost creates a host bound to stdin/stdout.
func NewHost() *Host {
	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	return &Host{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		interactive: interactive,
		width:       width,
		openDiffs:   make(map[string]bool),
	}
}

// OpenDocument opens the file at path as a document handle.
func (h *Host) OpenDocument(path string) (editor.Document, error) {
	return Open(path)
}

// ShowDiff renders the comparison view between the original document and the
// candidate artifact.
func (h *Host) ShowDiff(ctx context.Context, title string, original editor.Document, candidatePath string) error {
	candidate, err := os.ReadFile(candidatePath)
	if err != nil {
		return fmt.Errorf("failed to read candidate: %w", err)
	}

	titleStyle := color.New(color.Bold, color.FgCyan)
	titleStyle.Fprintln(h.out, title)

	viewer := tui.NewDiffViewer(h.width)
	fmt.Fprintln(h.out, viewer.Render(original.Text(), string(candidate), original.Path(), 40))

	h.mu.Lock()
	h.openDiffs[candidatePath] = true
	h.mu.Unlock()
	return nil
}

// CloseDiff closes the comparison view for the candidate artifact. A view
// that cannot be located is logged, not escalated.
func (h *Host) CloseDiff(candidatePath string) {
	h.mu.Lock()
	found := h.openDiffs[candidatePath]
	delete(h.openDiffs, candidatePath)
	h.mu.Unlock()

	if !found {
		hostLog.WithField("candidate", candidatePath).Debug("diff view not found")
	}
}

// Confirm presents the accept/reject prompt and waits for the user.
func (h *Host) Confirm(ctx context.Context, message string) (bool, error) {
	if h.interactive {
		return tui.Confirm(message, editor.ChoiceYes, editor.ChoiceNo), nil
	}

	fmt.Fprintf(h.out, "%s  %s / %s: ", message, editor.ChoiceYes, editor.ChoiceNo)
	line, err := h.in.ReadString('\n')
	if err != nil {
		return false, nil // EOF or closed stdin counts as reject
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// QuickPick asks the user to choose one item.
func (h *Host) QuickPick(ctx context.Context, placeholder string, items []string) (string, bool) {
	if len(items) == 0 {
		return "", false
	}
	if h.interactive {
		picks := make([]tui.PickItem, len(items))
		for i, it := range items {
			picks[i] = tui.PickItem{ID: it}
		}
		return tui.Pick(placeholder, picks)
	}

	fmt.Fprintln(h.out, placeholder)
	for i, it := range items {
		fmt.Fprintf(h.out, "  %d. %s\n", i+1, it)
	}
	fmt.Fprint(h.out, "> ")
	line, err := h.in.ReadString('\n')
	if err != nil {
		return "", false
	}
	answer := strings.TrimSpace(line)
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(items) {
		return items[n-1], true
	}
	for _, it := range items {
		if it == answer {
			return it, true
		}
	}
	return "", false
}

// ShowInfo surfaces an informational notice.
func (h *Host) ShowInfo(message string) {
	color.New(color.FgGreen).Fprintln(h.out, message)
}

// ShowError surfaces an error notice.
func (h *Host) ShowError(message string) {
	color.New(color.FgRed).Fprintln(h.out, message)
}

var hostLog = logging.Named("editor.local")
