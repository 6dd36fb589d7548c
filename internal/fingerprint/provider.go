// Package fingerprint derives a stable, opaque identifier for a
// device/browser profile from client-observable signals. The result is
// a best-effort binding key, not a tamper-proof credential: profile
// resets and private-browsing sessions legitimately shift it, and
// callers must treat fingerprint drift as a normal event.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	prefix = "fp_"
	// digestLen keeps the identifier short enough for logs and storage
	// while leaving collisions negligible for this trust level.
	digestLen = 32
)

// Signals are the client-observable properties the derivation consumes.
// Any subset may be empty.
type Signals struct {
	UserAgent  string `json:"user_agent"`
	Language   string `json:"language"`
	Timezone   string `json:"timezone"`
	Screen     string `json:"screen"`
	Platform   string `json:"platform"`
	CanvasHash string `json:"canvas_hash"`
}

func (s Signals) fields() []string {
	return []string{s.UserAgent, s.Language, s.Timezone, s.Screen, s.Platform, s.CanvasHash}
}

// Degraded reports whether no usable signal was available. A degraded
// fingerprint is still well-formed and deterministic; it just collapses
// all signal-less environments onto one value.
func (s Signals) Degraded() bool {
	for _, field := range s.fields() {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// Provider derives fingerprints. It carries no state and never fails:
// missing signals degrade the identifier instead of erroring.
type Provider struct{}

// NewProvider returns a fingerprint provider.
func NewProvider() Provider {
	return Provider{}
}

// Current returns the fingerprint for the given signals. The same
// signals always yield the same fingerprint.
func (Provider) Current(signals Signals) string {
	parts := make([]string, 0, 6)
	for _, field := range signals.fields() {
		parts = append(parts, strings.TrimSpace(field))
	}
	canonical := strings.Join(parts, "\x1f")
	if signals.Degraded() {
		canonical = "degraded"
	}

	digest := sha256.Sum256([]byte(canonical))
	return prefix + hex.EncodeToString(digest[:])[:digestLen]
}
