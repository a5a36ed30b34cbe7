package review

import (
	"strings"
	"testing"
)

func TestDecodeGeneratedStripsFences(t *testing.T) {
	raw := "```json\n{\"files\":[{\"path\":\"internal/store/store.go\",\"content\":\"package store\\n\"}],\"notes\":\"done\"}\n```"
	var gen Generated
	if err := decodeGenerated(raw, &gen); err != nil {
		t.Fatalf("decodeGenerated: %v", err)
	}
	if len(gen.Files) != 1 || gen.Files[0].Path != "internal/store/store.go" {
		t.Fatalf("unexpected files %+v", gen.Files)
	}
	if gen.Notes != "done" {
		t.Fatalf("unexpected notes %q", gen.Notes)
	}
}

func TestDecodeGeneratedRejectsEmptyFileList(t *testing.T) {
	var gen Generated
	err := decodeGenerated(`{"files":[],"notes":"nothing to do"}`, &gen)
	if err == nil {
		t.Fatal("expected error for empty file list")
	}
}

func TestDecodeGeneratedRejectsUnsafePaths(t *testing.T) {
	for _, path := range []string{"/etc/passwd", "../outside.go", "a/../../b.go"} {
		var gen Generated
		err := decodeGenerated(`{"files":[{"path":"`+path+`","content":"x"}]}`, &gen)
		if err == nil {
			t.Fatalf("expected error for path %q", path)
		}
	}
}

func TestDecodeGeneratedMalformedCarriesRawText(t *testing.T) {
	var gen Generated
	err := decodeGenerated("Sure! Here is the code you asked for.", &gen)
	if err == nil {
		t.Fatal("expected error for prose output")
	}
	if !strings.Contains(err.Error(), "Sure! Here is the code") {
		t.Fatalf("error should carry the raw output, got: %v", err)
	}
}
