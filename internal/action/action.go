// Package action holds the user-configured prompt templates and the lookup
// logic that maps chat slash-tokens and picked command ids onto them.
package action

import "strings"

// ActionTemplate is a chat slash-command template. The prompt may contain the
// literal "/<id> " token so the same text can double as the surface text shown
// in the chat panel.
type ActionTemplate struct {
	ID           string `mapstructure:"id" json:"id"`
	Label        string `mapstructure:"label" json:"label"`
	Prompt       string `mapstructure:"prompt" json:"prompt"`
	LoadingLabel string `mapstructure:"loading_label" json:"loading_label,omitempty"`
}

// CommandTemplate is a discrete pickable editor command.
type CommandTemplate struct {
	ID          string `mapstructure:"id" json:"id"`
	Description string `mapstructure:"description" json:"description"`
	Prompt      string `mapstructure:"prompt" json:"prompt"`
}

// Followup is a suggestion button offered on the chat surface after a
// response; it maps back to an action's id and prompt.
type Followup struct {
	Prompt  string
	Label   string
	Command string
}

// Registry resolves ids against the configured template sets. Built once at
// startup and immutable for the session.
type Registry struct {
	actions  []ActionTemplate
	commands []CommandTemplate
}

// NewRegistry builds a registry from the configured template lists.
func NewRegistry(actions []ActionTemplate, commands []CommandTemplate) *Registry {
	return &Registry{actions: actions, commands: commands}
}

// Resolve extracts the leading whitespace-delimited token from a raw chat
// prompt, strips the slash marker, and looks it up. A miss is not an error:
// unmatched chat input is a silent no-op, so the second return is false and
// callers produce an empty result.
func (r *Registry) Resolve(rawPrompt string) (*ActionTemplate, bool) {
	fields := strings.Fields(rawPrompt)
	if len(fields) == 0 {
		return nil, false
	}
	id := strings.TrimPrefix(fields[0], "/")
	if id == "" {
		return nil, false
	}
	for i := range r.actions {
		if r.actions[i].ID == id {
			return &r.actions[i], true
		}
	}
	return nil, false
}

// ResolveCommand looks up a picked command id. A miss here follows an explicit
// user selection, so callers show an informational notice instead of staying
// silent.
func (r *Registry) ResolveCommand(id string) (*CommandTemplate, bool) {
	for i := range r.commands {
		if r.commands[i].ID == id {
			return &r.commands[i], true
		}
	}
	return nil, false
}

// Actions returns the configured chat actions in configuration order.
func (r *Registry) Actions() []ActionTemplate { return r.actions }

// Commands returns the configured editor commands in configuration order.
func (r *Registry) Commands() []CommandTemplate { return r.commands }

// CommandIDs returns the pickable command ids in configuration order.
func (r *Registry) CommandIDs() []string {
	ids := make([]string, len(r.commands))
	for i, c := range r.commands {
		ids[i] = c.ID
	}
	return ids
}

// Followups returns one suggestion button per configured action.
func (r *Registry) Followups() []Followup {
	ups := make([]Followup, 0, len(r.actions))
	for _, a := range r.actions {
		ups = append(ups, Followup{
			Prompt:  a.Prompt,
			Label:   a.Label,
			Command: a.ID,
		})
	}
	return ups
}
