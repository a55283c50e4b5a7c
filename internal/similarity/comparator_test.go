package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alignlens/backend/internal/ontology"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	vec, ok := s.vectors[text]
	if !ok {
		return nil, errors.New("no vector for text")
	}
	return vec, nil
}

func def(t ontology.AttributeType) ontology.Definition {
	return ontology.Definition{Name: "attr", Type: t, AppliesTo: ontology.KindTask}
}

func TestScore_IdenticalValuesAreFullySimilar(t *testing.T) {
	c := NewComparator(nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		typ   ontology.AttributeType
		value string
	}{
		{"single choice", ontology.TypeSingleChoice, "High"},
		{"boolean", ontology.TypeBoolean, "true"},
		{"integer", ontology.TypeInteger, "42"},
		{"real", ontology.TypeReal, "3.5"},
		{"date", ontology.TypeDate, "2026-08-01"},
		{"free text", ontology.TypeFreeText, "ship the billing migration"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, 1.0, c.Score(ctx, tc.value, tc.value, def(tc.typ)))
		})
	}
}

func TestScore_ChoiceAndBooleanAreBinary(t *testing.T) {
	c := NewComparator(nil)
	ctx := context.Background()

	pairs := [][2]string{
		{"High", "Critical"},
		{"High", "high"},
		{"Low", "Medium"},
		{"true", "false"},
		{"TRUE", "true"},
	}

	for _, typ := range []ontology.AttributeType{ontology.TypeSingleChoice, ontology.TypeBoolean} {
		for _, pair := range pairs {
			score := c.Score(ctx, pair[0], pair[1], def(typ))
			assert.Contains(t, []float64{0.0, 1.0}, score,
				"no partial credit between enum members: %q vs %q", pair[0], pair[1])
		}
	}

	assert.Equal(t, 1.0, c.Score(ctx, "High", "high", def(ontology.TypeSingleChoice)))
	assert.Equal(t, 0.0, c.Score(ctx, "High", "Critical", def(ontology.TypeSingleChoice)))
}

func TestScore_NumericDecay(t *testing.T) {
	c := NewComparator(nil)
	ctx := context.Background()

	assert.Equal(t, 1.0, c.Score(ctx, "5", "5", def(ontology.TypeInteger)))
	assert.InDelta(t, 0.5, c.Score(ctx, "5", "4", def(ontology.TypeInteger)), 1e-9)
	assert.InDelta(t, 0.2, c.Score(ctx, "5", "1", def(ontology.TypeInteger)), 1e-9)

	// Strictly decreasing in |a-b|.
	prev := 1.1
	for _, b := range []string{"10", "9", "7", "4", "0"} {
		score := c.Score(ctx, "10", b, def(ontology.TypeReal))
		assert.Less(t, score, prev, "10 vs %s", b)
		prev = score
	}
}

func TestScore_NumericParseFailureDegradesToEquality(t *testing.T) {
	c := NewComparator(nil)
	ctx := context.Background()

	assert.Equal(t, 1.0, c.Score(ctx, "soon", "soon", def(ontology.TypeInteger)))
	assert.Equal(t, 0.0, c.Score(ctx, "soon", "later", def(ontology.TypeInteger)))
}

func TestScore_NonFiniteNumbersDegradeToEquality(t *testing.T) {
	c := NewComparator(nil)
	ctx := context.Background()

	// ParseFloat accepts these spellings; the score must stay in [0,1].
	for _, value := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "Infinity"} {
		score := c.Score(ctx, value, "5", def(ontology.TypeReal))
		assert.Equal(t, 0.0, score, "%s vs 5", value)

		score = c.Score(ctx, value, value, def(ontology.TypeReal))
		assert.Equal(t, 1.0, score, "%s vs itself", value)
	}

	assert.Equal(t, 0.0, c.Score(ctx, "NaN", "Inf", def(ontology.TypeReal)))
}

func TestScore_DateDecay(t *testing.T) {
	c := NewComparator(nil)
	ctx := context.Background()

	assert.Equal(t, 1.0, c.Score(ctx, "2026-08-10", "2026-08-10", def(ontology.TypeDate)))
	assert.InDelta(t, 0.5, c.Score(ctx, "2026-08-10", "2026-08-11", def(ontology.TypeDate)), 1e-9)
	assert.InDelta(t, 0.125, c.Score(ctx, "2026-08-10", "2026-08-17", def(ontology.TypeDate)), 1e-9)

	// Intra-day times must not matter.
	assert.Equal(t, 1.0, c.Score(ctx, "2026-08-10T23:59:00Z", "2026-08-10T00:01:00Z", def(ontology.TypeDate)))
}

func TestScore_EmptyTextShortCircuits(t *testing.T) {
	stub := &stubEmbedder{}
	c := NewComparator(stub)

	score := c.Score(context.Background(), "", "", def(ontology.TypeFreeText))

	assert.Equal(t, 1.0, score)
	assert.Zero(t, stub.calls, "empty-vs-empty must not call the embedder")
}

func TestScore_TextFallbackIsDeterministic(t *testing.T) {
	c := NewComparator(nil) // embedding path unavailable
	ctx := context.Background()

	a := "refactor the ingestion pipeline before launch"
	b := "rewrite the ingestion pipeline after launch"

	first := c.Score(ctx, a, b, def(ontology.TypeFreeText))
	second := c.Score(ctx, a, b, def(ontology.TypeFreeText))

	assert.Equal(t, first, second)
	assert.Equal(t, TokenOverlap(a, b), first)
}

func TestScore_EmbedderErrorFallsBackToOverlap(t *testing.T) {
	stub := &stubEmbedder{err: errors.New("service unavailable")}
	c := NewComparator(stub)

	a := "finish the quarterly report"
	b := "complete the report for the quarter"
	score := c.Score(context.Background(), a, b, def(ontology.TypeFreeText))

	assert.Equal(t, TokenOverlap(a, b), score)
	assert.Positive(t, stub.calls)
}

func TestScore_SemanticPathBeatsOverlap(t *testing.T) {
	a := "finish the quarterly report"
	b := "complete the report for the quarter"

	stub := &stubEmbedder{vectors: map[string][]float32{
		a: {1, 0},
		b: {0.9, 0.1},
	}}
	c := NewComparator(stub)

	score := c.Score(context.Background(), a, b, def(ontology.TypeFreeText))

	assert.Greater(t, score, TokenOverlap(a, b),
		"semantically close sentences should score above raw word overlap")
	assert.LessOrEqual(t, score, 1.0)
}

func TestScore_CosineRemapStaysInUnitInterval(t *testing.T) {
	a := "everything is on track"
	b := "the project has completely failed"

	stub := &stubEmbedder{vectors: map[string][]float32{
		a: {1, 0},
		b: {-1, 0},
	}}
	c := NewComparator(stub)

	score := c.Score(context.Background(), a, b, def(ontology.TypeFreeText))
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.InDelta(t, 0.0, score, 1e-9, "opposite vectors remap to 0")
}

func TestTryScore_UnknownTypeErrors(t *testing.T) {
	c := NewComparator(nil)

	_, err := c.TryScore(context.Background(), "a", "b", ontology.Definition{Name: "odd", Type: "ordinal"})
	require.Error(t, err)

	// Score must still not fail.
	assert.Equal(t, 0.0, c.Score(context.Background(), "a", "b", ontology.Definition{Name: "odd", Type: "ordinal"}))
}

func TestTokenOverlap(t *testing.T) {
	t.Run("ignores short words and case", func(t *testing.T) {
		// Significant words: {ship, billing} vs {ship, invoicing}.
		score := TokenOverlap("Ship the BILLING fix", "ship an invoicing fix")
		assert.InDelta(t, 1.0/2.0, score, 1e-9)
	})

	t.Run("no significant words", func(t *testing.T) {
		assert.Equal(t, 0.0, TokenOverlap("a an the", "of to in"))
	})

	t.Run("disjoint", func(t *testing.T) {
		assert.Equal(t, 0.0, TokenOverlap("alpha bravo charlie", "delta echo foxtrot"))
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}), "dimension mismatch")
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}), "zero vector")
}
