package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alignlens/backend/internal/ontology"
)

func TestValidateValue(t *testing.T) {
	choice := ontology.Definition{
		Name: "priority", Type: ontology.TypeSingleChoice,
		AllowedValues: []string{"Low", "Medium", "High"},
	}
	integer := ontology.Definition{Name: "estimated_days", Type: ontology.TypeInteger}
	real := ontology.Definition{Name: "workload", Type: ontology.TypeReal}
	boolean := ontology.Definition{Name: "is_blocking", Type: ontology.TypeBoolean}
	date := ontology.Definition{Name: "due_date", Type: ontology.TypeDate}
	text := ontology.Definition{Name: "main_goal", Type: ontology.TypeFreeText}

	assert.NoError(t, validateValue("high", choice))
	assert.Error(t, validateValue("Critical", choice))

	assert.NoError(t, validateValue("42", integer))
	assert.Error(t, validateValue("4.2", integer))

	assert.NoError(t, validateValue("4.2", real))
	assert.NoError(t, validateValue("-0.5", real))

	assert.NoError(t, validateValue("true", boolean))
	assert.Error(t, validateValue("yes", boolean))

	assert.NoError(t, validateValue("2026-08-29", date))
	assert.Error(t, validateValue("tomorrow", date))

	assert.NoError(t, validateValue("anything goes", text))
}

func TestValidateValueRejectsNonFiniteNumbers(t *testing.T) {
	real := ontology.Definition{Name: "workload", Type: ontology.TypeReal}
	integer := ontology.Definition{Name: "estimated_days", Type: ontology.TypeInteger}

	// ParseFloat accepts these, but storing them would poison downstream
	// scoring, so they must bounce at submission.
	for _, value := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "Infinity"} {
		assert.Error(t, validateValue(value, real), value)
		assert.Error(t, validateValue(value, integer), value)
	}
}
