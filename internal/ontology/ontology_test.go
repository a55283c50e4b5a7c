package ontology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry()

	t.Run("valid definition", func(t *testing.T) {
		err := r.Register(Definition{
			Name: "priority", Type: TypeSingleChoice,
			AllowedValues: []string{"High", "Low"}, AppliesTo: KindTask,
		})
		assert.NoError(t, err)
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		err := r.Register(Definition{
			Name: "priority", Type: TypeInteger, AppliesTo: KindTask,
		})
		assert.Error(t, err, "definitions are immutable once loaded")
	})

	t.Run("single choice needs values", func(t *testing.T) {
		err := r.Register(Definition{Name: "mood", Type: TypeSingleChoice, AppliesTo: KindPerson})
		assert.Error(t, err)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		err := r.Register(Definition{Name: "odd", Type: "ordinal", AppliesTo: KindTask})
		assert.Error(t, err)
	})

	t.Run("unknown applicability rejected", func(t *testing.T) {
		err := r.Register(Definition{Name: "weird", Type: TypeBoolean, AppliesTo: "project"})
		assert.Error(t, err)
	})
}

func TestRegistry_ForKindKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "b_attr", Type: TypeBoolean, AppliesTo: KindTask}))
	require.NoError(t, r.Register(Definition{Name: "a_attr", Type: TypeInteger, AppliesTo: KindTask}))
	require.NoError(t, r.Register(Definition{Name: "p_attr", Type: TypeFreeText, AppliesTo: KindPerson}))

	taskDefs := r.ForKind(KindTask)
	require.Len(t, taskDefs, 2)
	assert.Equal(t, "b_attr", taskDefs[0].Name)
	assert.Equal(t, "a_attr", taskDefs[1].Name)

	personDefs := r.ForKind(KindPerson)
	require.Len(t, personDefs, 1)
	assert.Equal(t, "p_attr", personDefs[0].Name)
}

func TestLoadFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ontology.yaml")
		content := `attributes:
  - name: status
    label: Status
    type: single_choice
    allowed_values: ["Open", "Closed"]
    important: true
    applies_to: task
  - name: focus
    label: Current focus
    type: free_text
    applies_to: person
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		r, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, r.Len())

		status, ok := r.Get("status")
		require.True(t, ok)
		assert.True(t, status.Important)
		assert.Equal(t, TypeSingleChoice, status.Type)
		assert.Equal(t, []string{"Open", "Closed"}, status.AllowedValues)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("empty ontology rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("attributes: []"), 0644))

		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("bad definition rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		content := `attributes:
  - name: status
    type: enum
    applies_to: task
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}

func TestDefault_CoreAttributesPresent(t *testing.T) {
	r := Default()

	for _, name := range []string{"status", "priority", "main_goal"} {
		def, ok := r.Get(name)
		require.True(t, ok, name)
		assert.True(t, def.Important, "core field %s outranks peripheral ones", name)
	}

	assert.NotEmpty(t, r.ForKind(KindTask))
	assert.NotEmpty(t, r.ForKind(KindPerson))
}
