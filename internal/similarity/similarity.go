// Package similarity implements the geometric half of matching: cosine
// similarity between preference and listing embeddings. Soft-preference
// weights are deliberately not applied here; they belong to the downstream
// personalization layer so this primitive stays testable on its own.
package similarity

import (
	"errors"
	"fmt"
	"math"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/user"
)

// ErrMissingEmbedding marks a pair whose similarity is undefined because one
// side lacks an embedding (or carries a zero-magnitude vector). Undefined is
// distinct from a zero score: "no data" must never look like "bad match".
var ErrMissingEmbedding = errors.New("missing embedding")

// Kind says which listing embedding a score was computed against.
type Kind string

const (
	// KindFull is the embedding over structure plus qualitative tone.
	KindFull Kind = "full"
	// KindVibe is the embedding over the free-text summary and style tags only.
	KindVibe Kind = "vibe"
)

// Thresholds are the minimum candidate scores per embedding kind. The
// defaults track the embedding model in use and are overridable from
// configuration.
type Thresholds struct {
	Full float64
	Vibe float64
}

// DefaultThresholds returns the baseline cut-offs for gemini-embedding-001.
func DefaultThresholds() Thresholds {
	return Thresholds{Full: 0.85, Vibe: 0.70}
}

// For returns the threshold that applies to the given embedding kind.
func (t Thresholds) For(k Kind) float64 {
	if k == KindVibe {
		return t.Vibe
	}
	return t.Full
}

// Result is a defined similarity score in [0,1] and the embedding kind it was
// computed against.
type Result struct {
	Score float64
	Kind  Kind
}

// Candidate reports whether the score strictly exceeds the threshold for its
// kind.
func (r Result) Candidate(t Thresholds) bool {
	return r.Score > t.For(r.Kind)
}

// Cosine returns dot(a,b) / (|a|*|b|) in [-1,1]. Vectors of mismatched
// dimension or zero magnitude have no defined similarity.
func Cosine(a, b listing.Embedding) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrMissingEmbedding
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions differ: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, ErrMissingEmbedding
	}

	c := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp floating-point drift so callers can rely on the documented range.
	return math.Max(-1, math.Min(1, c)), nil
}

// Score computes the match score between a user's preference embedding and a
// listing, preferring the vibe embedding and falling back to the full one.
// The cosine value is normalized from [-1,1] to [0,1].
func Score(l *listing.Listing, u *user.User) (Result, error) {
	if !u.HasPreferenceVector() {
		return Result{}, fmt.Errorf("user %s: %w", u.ID, ErrMissingEmbedding)
	}

	vector := l.VibeEmbedding
	kind := KindVibe
	if len(vector) == 0 {
		vector = l.FullEmbedding
		kind = KindFull
	}
	if len(vector) == 0 {
		return Result{}, fmt.Errorf("listing %s: %w", l.ID, ErrMissingEmbedding)
	}

	c, err := Cosine(u.PreferenceVector, vector)
	if err != nil {
		return Result{}, err
	}

	return Result{Score: (c + 1) / 2, Kind: kind}, nil
}
