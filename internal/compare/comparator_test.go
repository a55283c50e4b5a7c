package compare

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alignlens/backend/internal/ontology"
	"github.com/alignlens/backend/internal/similarity"
	"github.com/alignlens/backend/internal/store/models"
)

type fakeStore struct {
	persons map[string]*models.Person
	tasks   map[string][]models.Task
	answers map[string]*models.Answer
	edges   map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		persons: make(map[string]*models.Person),
		tasks:   make(map[string][]models.Task),
		answers: make(map[string]*models.Answer),
		edges:   make(map[string][]string),
	}
}

func answerKey(respondent, entity, attribute string) string {
	return fmt.Sprintf("%s|%s|%s", respondent, entity, attribute)
}

func (f *fakeStore) addPerson(id, name string) {
	f.persons[id] = &models.Person{ID: id, Name: name, CreatedAt: time.Now()}
}

func (f *fakeStore) addTask(id, title, ownerID string) {
	f.tasks[ownerID] = append(f.tasks[ownerID], models.Task{ID: id, Title: title, OwnerID: ownerID, Active: true})
}

func (f *fakeStore) addAnswer(respondent, entity, attribute, value string) {
	f.answers[answerKey(respondent, entity, attribute)] = &models.Answer{
		RespondentID: respondent,
		EntityID:     entity,
		Attribute:    attribute,
		Value:        value,
		SubmittedAt:  time.Now(),
	}
}

func (f *fakeStore) addRefusal(respondent, entity, attribute string) {
	f.answers[answerKey(respondent, entity, attribute)] = &models.Answer{
		RespondentID: respondent,
		EntityID:     entity,
		Attribute:    attribute,
		Refused:      true,
		SubmittedAt:  time.Now(),
	}
}

func (f *fakeStore) GetAnswer(_ context.Context, respondent, entity, attribute string) (*models.Answer, error) {
	return f.answers[answerKey(respondent, entity, attribute)], nil
}

func (f *fakeStore) GetPerson(_ context.Context, id string) (*models.Person, error) {
	return f.persons[id], nil
}

func (f *fakeStore) ListTasksOwnedBy(_ context.Context, ownerID string) ([]models.Task, error) {
	return f.tasks[ownerID], nil
}

func (f *fakeStore) TargetsOf(_ context.Context, personID string) ([]string, error) {
	return f.edges[personID], nil
}

type failingScorer struct{}

func (failingScorer) TryScore(context.Context, string, string, ontology.Definition) (float64, error) {
	return 0, errors.New("scorer broken")
}

func testRegistry(t *testing.T) *ontology.Registry {
	t.Helper()
	r := ontology.NewRegistry()
	require.NoError(t, r.Register(ontology.Definition{
		Name: "priority", Type: ontology.TypeSingleChoice,
		AllowedValues: []string{"Critical", "High", "Medium", "Low"},
		Important:     true, AppliesTo: ontology.KindTask,
	}))
	require.NoError(t, r.Register(ontology.Definition{
		Name: "estimated_days", Type: ontology.TypeReal, AppliesTo: ontology.KindTask,
	}))
	require.NoError(t, r.Register(ontology.Definition{
		Name: "focus", Type: ontology.TypeFreeText, AppliesTo: ontology.KindPerson,
	}))
	return r
}

func newTestComparator(store *fakeStore, registry *ontology.Registry) *Comparator {
	scorer := similarity.NewComparator(nil)
	return NewComparator(store, store, store, registry, scorer, Config{
		DefaultThreshold: 0.6,
		MaxConcurrent:    2,
	})
}

func TestCompareAll_FlagsDisagreement(t *testing.T) {
	store := newFakeStore()
	store.addPerson("alice", "Alice")
	store.addPerson("bob", "Bob")
	store.addTask("task-x", "Task X", "bob")
	store.edges["alice"] = []string{"bob"}

	store.addAnswer("bob", "task-x", "priority", "High")
	store.addAnswer("alice", "task-x", "priority", "Critical")

	c := newTestComparator(store, testRegistry(t))

	records, err := c.CompareAll(context.Background(), "alice", Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "bob", rec.TargetID)
	assert.Equal(t, "task-x", rec.EntityID)
	assert.Equal(t, "priority", rec.Attribute)
	assert.Equal(t, "Critical", rec.MyValue)
	assert.Equal(t, "High", rec.TheirValue)
	assert.Equal(t, 0.0, rec.Score)

	// The same record shows up in the unfiltered view.
	all, err := c.CompareAll(context.Background(), "alice", Options{IncludeAll: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rec, all[0])
}

func TestCompareAll_SkipsMissingAndRefusedSides(t *testing.T) {
	store := newFakeStore()
	store.addPerson("alice", "Alice")
	store.addPerson("bob", "Bob")
	store.addTask("task-x", "Task X", "bob")
	store.edges["alice"] = []string{"bob"}

	// priority: only Bob answered. estimated_days: Alice refused.
	store.addAnswer("bob", "task-x", "priority", "High")
	store.addAnswer("bob", "task-x", "estimated_days", "3")
	store.addRefusal("alice", "task-x", "estimated_days")

	c := newTestComparator(store, testRegistry(t))

	records, err := c.CompareAll(context.Background(), "alice", Options{IncludeAll: true})
	require.NoError(t, err)
	assert.Empty(t, records, "pairs missing either side contribute nothing to comparison")
}

func TestCompareAll_ThresholdFiltersSubsetOfIncludeAll(t *testing.T) {
	store := newFakeStore()
	store.addPerson("alice", "Alice")
	store.addPerson("bob", "Bob")
	store.addTask("task-x", "Task X", "bob")
	store.edges["alice"] = []string{"bob"}

	store.addAnswer("bob", "task-x", "priority", "High")
	store.addAnswer("alice", "task-x", "priority", "High") // 1.0
	store.addAnswer("bob", "task-x", "estimated_days", "5")
	store.addAnswer("alice", "task-x", "estimated_days", "4") // 0.5
	store.addAnswer("bob", "bob", "focus", "platform reliability work")
	store.addAnswer("alice", "bob", "focus", "shipping customer features") // 0.0 overlap

	c := newTestComparator(store, testRegistry(t))
	ctx := context.Background()

	all, err := c.CompareAll(ctx, "alice", Options{IncludeAll: true})
	require.NoError(t, err)
	require.Len(t, all, 3)

	for _, threshold := range []float64{0.0, 0.3, 0.6, 0.9, 1.0} {
		threshold := threshold
		filtered, err := c.CompareAll(ctx, "alice", Options{Threshold: &threshold})
		require.NoError(t, err)

		var expected []Misalignment
		for _, rec := range all {
			if rec.Score < threshold {
				expected = append(expected, rec)
			}
		}
		assert.Equal(t, expected, filtered, "threshold %v", threshold)
	}
}

func TestCompareAll_IgnoresPeopleOutsideAlignment(t *testing.T) {
	store := newFakeStore()
	store.addPerson("alice", "Alice")
	store.addPerson("carol", "Carol")
	store.addTask("task-c", "Carol's task", "carol")

	// Both answered, but Alice has no edge to Carol.
	store.addAnswer("carol", "task-c", "priority", "High")
	store.addAnswer("alice", "task-c", "priority", "Low")

	c := newTestComparator(store, testRegistry(t))

	records, err := c.CompareAll(context.Background(), "alice", Options{IncludeAll: true})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCompareAll_ScoringFailureSkipsPairOnly(t *testing.T) {
	store := newFakeStore()
	store.addPerson("alice", "Alice")
	store.addPerson("bob", "Bob")
	store.addTask("task-x", "Task X", "bob")
	store.edges["alice"] = []string{"bob"}

	store.addAnswer("bob", "task-x", "priority", "High")
	store.addAnswer("alice", "task-x", "priority", "Critical")

	c := NewComparator(store, store, store, testRegistry(t), failingScorer{}, Config{
		DefaultThreshold: 0.6,
		MaxConcurrent:    1,
	})

	records, err := c.CompareAll(context.Background(), "alice", Options{IncludeAll: true})
	require.NoError(t, err, "a per-pair failure must not abort the scan")
	assert.Empty(t, records)
}

func TestCompareAll_UnknownTargetSkipped(t *testing.T) {
	store := newFakeStore()
	store.addPerson("alice", "Alice")
	store.edges["alice"] = []string{"ghost"}

	c := newTestComparator(store, testRegistry(t))

	records, err := c.CompareAll(context.Background(), "alice", Options{IncludeAll: true})
	require.NoError(t, err)
	assert.Empty(t, records)
}
