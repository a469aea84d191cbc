package tui

import (
	"strings"
	"testing"
)

func TestComputeLineDiffEqual(t *testing.T) {
	diff := ComputeLineDiff("a\nb\nc", "a\nb\nc")
	for _, dl := range diff {
		if dl.Op != DiffEqual {
			t.Errorf("line %q: op = %v, want DiffEqual", dl.Text, dl.Op)
		}
	}
}

func TestComputeLineDiffInsertDelete(t *testing.T) {
	diff := ComputeLineDiff("a\nb\nc", "a\nx\nc")

	var deleted, inserted []string
	for _, dl := range diff {
		switch dl.Op {
		case DiffDelete:
			deleted = append(deleted, dl.Text)
		case DiffInsert:
			inserted = append(inserted, dl.Text)
		}
	}
	if len(deleted) != 1 || deleted[0] != "b" {
		t.Errorf("deleted = %v, want [b]", deleted)
	}
	if len(inserted) != 1 || inserted[0] != "x" {
		t.Errorf("inserted = %v, want [x]", inserted)
	}
}

func TestComputeLineDiffLineNumbers(t *testing.T) {
	diff := ComputeLineDiff("a\nb", "a\nb\nc")

	last := diff[len(diff)-1]
	if last.Op != DiffInsert {
		t.Fatalf("last op = %v, want DiffInsert", last.Op)
	}
	if last.NewLine != 3 {
		t.Errorf("NewLine = %d, want 3", last.NewLine)
	}
	if last.OldLine != 0 {
		t.Errorf("OldLine = %d, want 0 for insert", last.OldLine)
	}
}

func TestComputeLineDiffEmptySides(t *testing.T) {
	diff := ComputeLineDiff("", "a\nb")
	for _, dl := range diff {
		if dl.Op != DiffInsert {
			t.Errorf("op = %v, want DiffInsert for empty old content", dl.Op)
		}
	}

	diff = ComputeLineDiff("a\nb", "")
	for _, dl := range diff {
		if dl.Op != DiffDelete {
			t.Errorf("op = %v, want DiffDelete for empty new content", dl.Op)
		}
	}
}

func TestRenderShowsBothSides(t *testing.T) {
	dv := NewDiffViewer(120)
	out := dv.Render("old line\n", "new line\n", "main.go", 40)

	if !strings.Contains(out, "old line") {
		t.Error("render missing original content")
	}
	if !strings.Contains(out, "new line") {
		t.Error("render missing candidate content")
	}
}

func TestRenderNarrowFallsBackToInline(t *testing.T) {
	dv := NewDiffViewer(40)
	out := dv.Render("a\n", "b\n", "main.go", 40)

	if !strings.Contains(out, "a") || !strings.Contains(out, "b") {
		t.Error("inline render missing content")
	}
}

func TestMarkdownRendererFallsBackToRaw(t *testing.T) {
	r := NewMarkdownRenderer(80)
	out := r.Render("# Title\n\nbody")
	if !strings.Contains(out, "Title") || !strings.Contains(out, "body") {
		t.Errorf("rendered markdown lost content: %q", out)
	}
}
