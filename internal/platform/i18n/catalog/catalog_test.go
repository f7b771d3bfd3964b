package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	if !bundle.HasLocale(BaseLocale) {
		t.Fatalf("expected base locale %s", BaseLocale)
	}
	if !bundle.HasLocale("pt-BR") {
		t.Fatalf("expected locale pt-BR")
	}
	if got := len(bundle.NamespaceMessages("en-US", "core")); got == 0 {
		t.Fatalf("expected en-US core namespace messages")
	}
	if got := len(bundle.NamespaceMessages("en-US", "web")); got == 0 {
		t.Fatalf("expected en-US web namespace messages")
	}
}

func TestLoadFromFSRejectsCoreKeyOutsideCoreNamespace(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/web.yaml"), `locale: "en-US"
namespace: "web"
messages:
  "core.bad": "nope"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/core.yaml"), `locale: "en-US"
namespace: "core"
messages:
  "core.good": "ok"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadFromFSRejectsDuplicateKeysAcrossNamespaces(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/core.yaml"), `locale: "en-US"
namespace: "core"
messages:
  "a.key": "a"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/web.yaml"), `locale: "en-US"
namespace: "web"
messages:
  "a.key": "b"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestLoadFromFSRequiresBaseLocale(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/pt-BR/web.yaml"), `locale: "pt-BR"
namespace: "web"
messages:
  "a.key": "a"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected missing base locale error")
	}
}

func TestNamespaceMessagesWithFallback(t *testing.T) {
	resolved, messages := Default().NamespaceMessagesWithFallback("fr-FR", "web")
	if resolved != "en-US" {
		t.Fatalf("resolved locale = %q, want en-US", resolved)
	}
	if len(messages) == 0 {
		t.Fatal("expected fallback web namespace messages")
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: "en-US"},
		{header: "pt-BR,pt;q=0.9,en;q=0.8", want: "pt-BR"},
		{header: "pt", want: "pt-BR"},
		{header: "fr-FR", want: "en-US"},
		{header: "not a locale;;", want: "en-US"},
	}
	for _, tc := range tests {
		if got := Default().Match(tc.header); got != tc.want {
			t.Fatalf("Match(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestTFormatsWithFallback(t *testing.T) {
	bundle := Default()
	if got := bundle.T("en-US", "counter.value", 5); got != "Count: 5" {
		t.Fatalf("en-US = %q", got)
	}
	if got := bundle.T("pt-BR", "counter.value", 5); got != "Valor: 5" {
		t.Fatalf("pt-BR = %q", got)
	}
	// pt-BR has no tokens.col.price, so the base message is used.
	if got := bundle.T("pt-BR", "tokens.col.price"); got != "Price" {
		t.Fatalf("fallback = %q", got)
	}
	if got := bundle.T("en-US", "missing.key"); got != "missing.key" {
		t.Fatalf("missing = %q", got)
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
