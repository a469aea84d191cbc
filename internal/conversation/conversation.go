// Package conversation assembles the ordered turn sequence sent to the
// completion provider: template prompt first, then the active document, then
// any referenced documents in caller order.
package conversation

import "strings"

// Roles for a turn. Build sends everything as user content; RoleSystem exists
// for richer builders.
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// Turn is one role-tagged message. Order within a slice is significant and
// turns are never mutated after construction.
type Turn struct {
	Role string
	Text string
}

// User returns a user-role turn.
func User(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// StripCommandToken removes the literal "/<id> " token from a template prompt,
// letting a prompt double as its slash-command surface text.
func StripCommandToken(prompt, id string) string {
	return strings.Replace(prompt, "/"+id+" ", "", 1)
}

// Build produces the fixed turn ordering: the template prompt (with its
// command token stripped), the active document text iff non-empty, then one
// turn per reference in the supplied order. Deterministic for identical
// inputs; an empty prompt still yields a single empty turn.
func Build(prompt, id, activeText string, refs []string) []Turn {
	turns := make([]Turn, 0, 2+len(refs))
	turns = append(turns, User(StripCommandToken(prompt, id)))
	if activeText != "" {
		turns = append(turns, User(activeText))
	}
	for _, ref := range refs {
		turns = append(turns, User(ref))
	}
	return turns
}
