package audit

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"DOCRAG_API_KEY", "s3cret", "set"},
		{"DOCRAG_API_KEY", "", "unset"},
		{"ARK_API_KEY", "ark-abc", "set"},
		{"VECTOR_INDEX", "qdrant", "qdrant"},
		{"VECTOR_INDEX", "", "unset"},
		{"DOCRAG_DB", "/tmp/docrag.db", "/tmp/docrag.db"},
	}
	for _, tc := range tests {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.docrag/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.docrag/config.yaml" {
			t.Errorf("expected '~/.docrag/config.yaml', got %q", got)
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("DOCRAG_API_KEY", "super-secret-token")
	t.Setenv("VECTOR_INDEX", "memory")

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	LogCommandStart(log, "serve", "")

	out := buf.String()
	if strings.Contains(out, "super-secret-token") {
		t.Fatalf("secret value leaked into audit log: %s", out)
	}
	for _, want := range []string{"command=serve", "DOCRAG_API_KEY=set", "VECTOR_INDEX=memory", "config_file=none"} {
		if !strings.Contains(out, want) {
			t.Errorf("audit log missing %q: %s", want, out)
		}
	}
}
