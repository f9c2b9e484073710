// Package models holds the wire and domain types shared across ArtifactFlow's
// components: conversations, messages, artifacts, runs, and the event
// envelopes streamed to clients.
package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewID returns a prefixed hex identifier, e.g. "msg-3f9a1c2b4e5d6789".
// Mirrors the original controller's id scheme (msg-/thd- prefixes) rather
// than a bare UUID, since the wire format and tests key off these prefixes.
func NewID(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the system RNG is broken; there is no
		// sane fallback, so surface an obviously-wrong id instead of
		// silently colliding.
		return fmt.Sprintf("%s-badrandom", prefix)
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(buf))
}
