package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// tempPrefix scopes temp artifacts to this project so concurrent tools never
// collide on naming.
const tempPrefix = "stylecopilot-temp-"

// Session is the ephemeral state of one diff round trip: a uniquely named
// temp artifact holding the candidate text. It never outlives its originating
// invocation.
type Session struct {
	ID        string
	TempPath  string
	Candidate string

	removeOnce sync.Once
}

// newSession persists the candidate to a uniquely named temp file carrying
// the original document's extension, so the comparison view can apply the
// right syntax handling.
func newSession(doc interface{ Path() string }, candidate, tempDir string) (*Session, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	id := uuid.New().String()
	name := fmt.Sprintf("%s%s%s", tempPrefix, id, filepath.Ext(doc.Path()))
	path := filepath.Join(tempDir, name)

	if err := os.WriteFile(path, []byte(candidate), 0600); err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		TempPath:  path,
		Candidate: candidate,
	}, nil
}

// Remove deletes the temp artifact. Idempotent; later calls are no-ops.
func (s *Session) Remove() error {
	var err error
	s.removeOnce.Do(func() {
		if rmErr := os.Remove(s.TempPath); rmErr != nil && !os.IsNotExist(rmErr) {
			err = rmErr
		}
	})
	return err
}
