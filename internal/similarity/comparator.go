// Package similarity scores how close two independently given answers are,
// per attribute type. Scores are always in [0,1]; 1.0 means the two
// respondents perceive the attribute identically.
package similarity

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alignlens/backend/internal/metrics"
	"github.com/alignlens/backend/internal/ontology"
	"github.com/alignlens/backend/pkg/logger"
)

// Embedder is the semantic path for free-text values. A nil Embedder or any
// embedding error routes the comparison through the deterministic
// token-overlap fallback.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Comparator struct {
	embedder Embedder
}

func NewComparator(embedder Embedder) *Comparator {
	return &Comparator{embedder: embedder}
}

// Score compares two raw values under the attribute's declared type. It never
// fails: internal problems degrade to a cruder comparison instead of
// propagating. Both inputs must be present, non-refused values; filtering
// refusals is the caller's job.
func (c *Comparator) Score(ctx context.Context, a, b string, def ontology.Definition) float64 {
	score, err := c.TryScore(ctx, a, b, def)
	if err != nil {
		logger.Warn("Similarity degraded to equality check",
			zap.String("attribute", def.Name),
			zap.Error(err),
		)
		return equalityScore(a, b)
	}
	return score
}

// TryScore is Score with the one genuinely impossible case surfaced: an
// attribute type outside the closed set. Scan loops use it so a bad
// definition can be skipped (or classified conservatively) per tuple instead
// of silently scoring it.
func (c *Comparator) TryScore(ctx context.Context, a, b string, def ontology.Definition) (float64, error) {
	var score float64
	switch def.Type {
	case ontology.TypeSingleChoice, ontology.TypeBoolean:
		score = equalityScore(a, b)
	case ontology.TypeInteger, ontology.TypeReal:
		score = c.numericScore(a, b, def)
	case ontology.TypeDate:
		score = c.dateScore(a, b, def)
	case ontology.TypeFreeText:
		score = c.textScore(ctx, a, b)
	default:
		return 0, fmt.Errorf("unknown attribute type %q", def.Type)
	}

	metrics.SimilarityScore.Observe(score)
	return score, nil
}

// equalityScore gives no partial credit: distinct enum members are fully
// dissimilar even when ordinally adjacent.
func equalityScore(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1.0
	}
	return 0.0
}

// numericScore decays as 1/(1+|a-b|): identical 1.0, one apart 0.5, four
// apart 0.2. Needs no known value range, so it behaves the same for 1-5
// rating scales and unbounded counts.
func (c *Comparator) numericScore(a, b string, def ontology.Definition) float64 {
	na, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	nb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	// ParseFloat accepts "NaN" and "Inf", which would leak out of [0,1]
	// through the arithmetic below. Treat them like any other bad input.
	if errA != nil || errB != nil || !isFinite(na) || !isFinite(nb) {
		logger.Warn("Non-numeric value for numeric attribute",
			zap.String("attribute", def.Name),
		)
		return equalityScore(a, b)
	}
	return 1.0 / (1.0 + math.Abs(na-nb))
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func (c *Comparator) dateScore(a, b string, def ontology.Definition) float64 {
	da, errA := parseDate(a)
	db, errB := parseDate(b)
	if errA != nil || errB != nil {
		logger.Warn("Unparseable value for date attribute",
			zap.String("attribute", def.Name),
		)
		return equalityScore(a, b)
	}

	days := math.Abs(da.Sub(db).Hours() / 24)
	return 1.0 / (1.0 + days)
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			// Calendar-day distance, not wall-clock distance.
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func (c *Comparator) textScore(ctx context.Context, a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)

	// Two empty answers agree; no point paying for an embedding call.
	if a == "" && b == "" {
		return 1.0
	}

	if c.embedder != nil {
		if score, err := c.semanticScore(ctx, a, b); err == nil {
			return score
		} else {
			logger.Warn("Embedding unavailable, using token overlap", zap.Error(err))
		}
	}

	metrics.EmbeddingFallbacks.Inc()
	return TokenOverlap(a, b)
}

func (c *Comparator) semanticScore(ctx context.Context, a, b string) (float64, error) {
	va, err := c.embedder.Embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := c.embedder.Embed(ctx, b)
	if err != nil {
		return 0, err
	}

	// Cosine lands in [-1,1]; remap into [0,1] so all types share a scale.
	score := (cosineSimilarity(va, vb) + 1) / 2
	return clamp01(score), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TokenOverlap is the deterministic fallback for free text: lower-case both
// strings, keep words longer than three characters, and report
// |common| / max(|a|, |b|, 1) over the two word sets. Same inputs always
// produce the same score.
func TokenOverlap(a, b string) float64 {
	wordsA := significantWords(a)
	wordsB := significantWords(b)

	common := 0
	for word := range wordsA {
		if _, ok := wordsB[word]; ok {
			common++
		}
	}

	denom := len(wordsA)
	if len(wordsB) > denom {
		denom = len(wordsB)
	}
	if denom < 1 {
		denom = 1
	}
	return float64(common) / float64(denom)
}

func significantWords(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if len(word) > 3 {
			words[word] = struct{}{}
		}
	}
	return words
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
