package hydration

import (
	"strings"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
)

// Mode selects which halves of the protocol a deployment runs.
type Mode string

const (
	// ModeServerRender renders on the server and ships no payloads.
	ModeServerRender Mode = "server-render"
	// ModeServerRenderHydrate renders on the server, embeds payloads and
	// hydrates on the client.
	ModeServerRenderHydrate Mode = "server-render-hydrate"
	// ModeClientRender serves a shell; the client builds default stores and
	// fetches.
	ModeClientRender Mode = "client-render"
)

// ParseMode parses a mode name. An empty value selects
// ModeServerRenderHydrate.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeServerRenderHydrate, "hydrate":
		return ModeServerRenderHydrate, nil
	case ModeServerRender, "ssr":
		return ModeServerRender, nil
	case ModeClientRender, "csr":
		return ModeClientRender, nil
	}
	return "", apperrors.WithMetadata(apperrors.CodeInvalidMode, "unknown render mode", map[string]string{
		"mode": value,
	})
}

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// RendersOnServer reports whether pages are rendered with populated stores.
func (m Mode) RendersOnServer() bool {
	return m == ModeServerRender || m == ModeServerRenderHydrate
}

// Embeds reports whether the serializer path is active.
func (m Mode) Embeds() bool {
	return m == ModeServerRenderHydrate
}

// Locates reports whether the client looks for payloads.
func (m Mode) Locates() bool {
	return m == ModeServerRenderHydrate
}
