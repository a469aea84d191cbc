// Package editor defines the host capability interface the workflows run
// against: opaque document handles plus the UI surfaces (diff view,
// confirmation prompt, quick-pick, notices). The host owns these objects;
// this package only describes them.
package editor

import "context"

// Document is an opaque handle to an open document. Write access is a single
// full-range replace; partial edits are not part of the contract.
type Document interface {
	// Path returns the document's backing location (used for the temp
	// artifact's extension and diff titles).
	Path() string
	// Text returns the document's full current content.
	Text() string
	// Replace swaps the entire content in one edit. It does not persist.
	Replace(content string) error
	// Save persists the current content to the backing store.
	Save() error
}

// Host is the editor-host surface the workflows call into.
type Host interface {
	// OpenDocument opens the document at path for reading and editing.
	OpenDocument(path string) (Document, error)

	// ShowDiff opens a comparison view between the original document and
	// the candidate artifact. The view stays available until CloseDiff.
	ShowDiff(ctx context.Context, title string, original Document, candidatePath string) error

	// CloseDiff closes the comparison view for the candidate artifact.
	// Best-effort: a view that cannot be located is not an error.
	CloseDiff(candidatePath string)

	// Confirm presents a binary accept/reject prompt and suspends until
	// the user answers. Only an explicit accept returns true.
	Confirm(ctx context.Context, message string) (bool, error)

	// QuickPick asks the user to choose one item. The second return is
	// false when the user dismisses the picker.
	QuickPick(ctx context.Context, placeholder string, items []string) (string, bool)

	// ShowInfo and ShowError surface notices to the user.
	ShowInfo(message string)
	ShowError(message string)
}

// Decision prompt choices, rendered exactly as the product strings.
const (
	ChoiceYes = "✅ Yes"
	ChoiceNo  = "❌ No"
)
