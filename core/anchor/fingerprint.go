package anchor

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/marginalia/core/tree"
)

// Fingerprint computes the BLAKE3 hash of text and returns it as a hex string.
func Fingerprint(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ContainerFingerprint hashes the flattened text content of a container.
func ContainerFingerprint(c tree.Container) string {
	return Fingerprint(tree.TextContent(c, c.Root()))
}

// Stale reports whether the container text differs from the text the position
// was recorded against. Positions without a fingerprint are never stale.
func (p *Position) Stale(c tree.Container) bool {
	if p == nil || p.Fingerprint == "" {
		return false
	}
	return p.Fingerprint != ContainerFingerprint(c)
}
