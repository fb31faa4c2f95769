package web

import (
	"bytes"
	"io/fs"
	"testing"
)

func TestTemplatesParse(t *testing.T) {
	tmpl, err := Templates()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	for _, name := range []string{"login.html", "error.html", "detector_detect.html", "shogi_kifu_view.html"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %s not found", name)
		}
	}

	var buf bytes.Buffer
	data := map[string]any{"Status": 404, "Message": "<script>"}
	if err := tmpl.ExecuteTemplate(&buf, "error.html", data); err != nil {
		t.Fatalf("execute error page: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("<script>")) {
		t.Error("message must be escaped")
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{16 << 20, "16.0 MiB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.in); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatic(t *testing.T) {
	if _, err := fs.Stat(Static(), "style.css"); err != nil {
		t.Fatalf("style.css missing: %v", err)
	}
}
