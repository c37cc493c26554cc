package object

import (
	"io"
	"strings"
	"testing"
)

func TestNewKeyNamespacesByOwner(t *testing.T) {
	key, err := NewKey("user-1", "my/report.pdf")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	parts := strings.Split(key, "/")
	if len(parts) != 2 {
		t.Fatalf("expected owner/name key, got %q", key)
	}
	if len(parts[0]) != 64 {
		t.Fatalf("expected hashed owner segment, got %q", parts[0])
	}
	if !strings.HasSuffix(parts[1], "_my_report.pdf") {
		t.Fatalf("expected sanitized name suffix, got %q", parts[1])
	}

	if _, err := NewKey("user-1", "../etc/passwd"); err == nil {
		t.Fatalf("expected traversal name to be rejected")
	}
}

func TestSniffReplaysHead(t *testing.T) {
	mime, body, err := Sniff(strings.NewReader("%PDF-1.4 rest of file"))
	if err != nil {
		t.Fatalf("Sniff: %v", err)
	}
	if mime != "application/pdf" {
		t.Fatalf("expected application/pdf, got %s", mime)
	}
	all, _ := io.ReadAll(body)
	if string(all) != "%PDF-1.4 rest of file" {
		t.Fatalf("unexpected body %q", string(all))
	}
}
