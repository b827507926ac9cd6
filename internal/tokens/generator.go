package tokens

import (
	"encoding/base64"
	"fmt"
	"io"
)

const DefaultTokenSize = 18

// Generator produces opaque token values from a cryptographically secure
// random source. The source must be safe for concurrent use; crypto/rand's
// Reader is.
type Generator struct {
	source io.Reader
	size   int
}

// NewGenerator probes the source once so that a source unable to supply
// entropy fails at startup instead of at the first allocation.
func NewGenerator(source io.Reader, size int) (*Generator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("token size must be positive, got %d", size)
	}

	probe := make([]byte, size)
	if _, err := io.ReadFull(source, probe); err != nil {
		return nil, fmt.Errorf("random source unavailable: %w", err)
	}

	return &Generator{
		source: source,
		size:   size,
	}, nil
}

// Generate returns size random bytes encoded with the URL-safe base64
// alphabet. Sizes that are multiples of 3 encode without padding.
func (g *Generator) Generate() string {
	b := make([]byte, g.size)
	if _, err := io.ReadFull(g.source, b); err != nil {
		panic(fmt.Sprintf("token random source failed: %v", err))
	}

	return base64.URLEncoding.EncodeToString(b)
}

// EncodedLen is the length of every value returned by Generate.
func (g *Generator) EncodedLen() int {
	return base64.URLEncoding.EncodedLen(g.size)
}
