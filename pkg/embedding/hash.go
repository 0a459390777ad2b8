package embedding

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// HashProvider is the deterministic offline embedding strategy. It maps
// tokens to buckets with a rolling hash and weights earlier tokens more
// heavily. Semantically weak (hash collisions carry no meaning), but
// fully reproducible without network access.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a deterministic hash-based provider
func NewHashProvider(dimension int) *HashProvider {
	return &HashProvider{dimension: dimension}
}

func (p *HashProvider) Dimension() int {
	return p.dimension
}

func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimension)

	tokens := tokenize(text)
	for i, token := range tokens {
		var h int32
		for _, r := range token {
			h = h*31 + int32(r)
		}
		bucket := int(abs32(h)) % p.dimension
		vec[bucket] += float32(1.0 / float64(i+1))
	}

	// L2 normalize; an all-zero vector stays all-zero
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec, nil
	}

	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}

	return vec, nil
}

// tokenize lowercases, strips punctuation, splits on whitespace and
// drops tokens of length <= 2
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return unicode.ToLower(r)
		default:
			return -1
		}
	}, text)

	var tokens []string
	for _, token := range strings.Fields(cleaned) {
		if len([]rune(token)) > 2 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func abs32(v int32) int64 {
	n := int64(v)
	if n < 0 {
		return -n
	}
	return n
}
