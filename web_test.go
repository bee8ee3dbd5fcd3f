package agentgames

import (
	"io/fs"
	"testing"
)

func TestWebFSContainsFiles(t *testing.T) {
	files := []string{
		"web/css/style.css",
		"web/js/session.js",
	}
	for _, path := range files {
		data, err := fs.ReadFile(WebFS, path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", path, err)
		}
		if len(data) == 0 {
			t.Fatalf("expected non-empty content for %s", path)
		}
	}
}

func TestWebFSSub(t *testing.T) {
	sub, err := fs.Sub(WebFS, "web")
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if _, err := fs.Stat(sub, "js/session.js"); err != nil {
		t.Fatalf("Stat(js/session.js): %v", err)
	}
}
