package clipboardx

import (
	"bytes"
	"testing"
)

func TestLocation(t *testing.T) {
	if got := Location("src/main.go", 12, 5); got != "src/main.go:12:5" {
		t.Fatalf("unexpected location %q", got)
	}
}

func TestWriteOSC52(t *testing.T) {
	var out bytes.Buffer
	if err := writeOSC52(&out, "a.go:1:1"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := out.String(); got != "\x1b]52;c;YS5nbzoxOjE=\x07" {
		t.Fatalf("unexpected sequence %q", got)
	}
	if err := writeOSC52(&out, ""); err == nil {
		t.Fatalf("expected empty text to be refused")
	}
}
