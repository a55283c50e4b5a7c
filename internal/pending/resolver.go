// Package pending enumerates what a person still owes the system: answers
// never given, answers gone stale, and answers that disagree with the
// subject's own. Items are derived on demand and ranked; nothing here is
// persisted.
package pending

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/alignlens/backend/internal/metrics"
	"github.com/alignlens/backend/internal/ontology"
	"github.com/alignlens/backend/internal/store/models"
	"github.com/alignlens/backend/pkg/logger"
)

type AnswerStore interface {
	GetAnswer(ctx context.Context, respondentID, entityID, attribute string) (*models.Answer, error)
}

type EntityStore interface {
	GetPerson(ctx context.Context, id string) (*models.Person, error)
	ListTasksOwnedBy(ctx context.Context, ownerID string) ([]models.Task, error)
}

type AlignmentView interface {
	TargetsOf(ctx context.Context, personID string) ([]string, error)
}

type Scorer interface {
	TryScore(ctx context.Context, a, b string, def ontology.Definition) (float64, error)
}

type Reason string

const (
	ReasonMissing    Reason = "missing"
	ReasonStale      Reason = "stale"
	ReasonMisaligned Reason = "misaligned"
)

// Item is one outstanding obligation. Lower priority sorts first.
type Item struct {
	TargetID   string `json:"target_id"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	EntityName string `json:"entity_name"`
	Attribute  string `json:"attribute"`
	Reason     Reason `json:"reason"`
	Priority   int    `json:"priority"`
}

type Options struct {
	// FreshnessWindow overrides the configured default when positive.
	// Different call sites legitimately use different windows.
	FreshnessWindow time.Duration
	// Threshold overrides the configured misalignment threshold when non-nil.
	Threshold *float64
}

type Config struct {
	DefaultThreshold       float64
	DefaultFreshnessWindow time.Duration
	BasePriority           int
	MissingBonus           int
	MisalignedBonus        int
	StaleBonus             int
	ImportantBonus         int
}

type Resolver struct {
	graph    AlignmentView
	answers  AnswerStore
	entities EntityStore
	registry *ontology.Registry
	scorer   Scorer
	cfg      Config
}

func NewResolver(graph AlignmentView, answers AnswerStore, entities EntityStore, registry *ontology.Registry, scorer Scorer, cfg Config) *Resolver {
	return &Resolver{
		graph:    graph,
		answers:  answers,
		entities: entities,
		registry: registry,
		scorer:   scorer,
		cfg:      cfg,
	}
}

type subject struct {
	ownerID string
	id      string
	name    string
	kind    ontology.EntityKind
}

// PendingFor returns the person's outstanding obligations, most urgent first.
// Scope: their own profile and tasks, plus the profiles and tasks of everyone
// they align with. Refused tuples never appear. The sort is stable, so
// repeated calls over unchanged data return identical orderings.
func (r *Resolver) PendingFor(ctx context.Context, personID string, opts Options) ([]Item, error) {
	start := time.Now()
	defer func() {
		metrics.ScanDuration.WithLabelValues("pending").Observe(time.Since(start).Seconds())
	}()

	window := r.cfg.DefaultFreshnessWindow
	if opts.FreshnessWindow > 0 {
		window = opts.FreshnessWindow
	}
	threshold := r.cfg.DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	targets, err := r.graph.TargetsOf(ctx, personID)
	if err != nil {
		return nil, err
	}

	var items []Item
	now := time.Now()
	for _, sub := range r.collectSubjects(ctx, personID, targets) {
		for _, def := range r.registry.ForKind(sub.kind) {
			item, ok := r.classify(ctx, personID, sub, def, now, window, threshold)
			if !ok {
				continue
			}
			metrics.PendingItems.WithLabelValues(string(item.Reason)).Inc()
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority < items[j].Priority
	})
	return items, nil
}

// collectSubjects enumerates the obligation scope in a deterministic order:
// self first, then each alignment target, profile before tasks.
func (r *Resolver) collectSubjects(ctx context.Context, personID string, targets []string) []subject {
	var subjects []subject
	for _, owner := range append([]string{personID}, targets...) {
		person, err := r.entities.GetPerson(ctx, owner)
		if err != nil || person == nil {
			logger.Warn("Skipping unknown person in obligation scope",
				zap.String("person", owner),
				zap.Error(err),
			)
			continue
		}
		subjects = append(subjects, subject{ownerID: owner, id: person.ID, name: person.Name, kind: ontology.KindPerson})

		tasks, err := r.entities.ListTasksOwnedBy(ctx, owner)
		if err != nil {
			logger.Warn("Failed to list tasks in obligation scope",
				zap.String("person", owner),
				zap.Error(err),
			)
			continue
		}
		for _, task := range tasks {
			subjects = append(subjects, subject{ownerID: owner, id: task.ID, name: task.Title, kind: ontology.KindTask})
		}
	}
	return subjects
}

// classify decides whether one (subject, attribute) tuple is owed anything by
// the person, and with what urgency. Returns ok=false when the tuple is
// satisfied or refused.
func (r *Resolver) classify(ctx context.Context, personID string, sub subject, def ontology.Definition, now time.Time, window time.Duration, threshold float64) (Item, bool) {
	answer, err := r.answers.GetAnswer(ctx, personID, sub.id, def.Name)
	if err != nil {
		logger.Warn("Answer lookup failed during pending scan",
			zap.String("entity", sub.id),
			zap.String("attribute", def.Name),
			zap.Error(err),
		)
		return Item{}, false
	}

	if answer != nil && answer.Refused {
		return Item{}, false
	}

	var reason Reason
	switch {
	case answer == nil:
		reason = ReasonMissing
	case now.Sub(answer.SubmittedAt) > window:
		reason = ReasonStale
	default:
		misaligned, ok := r.checkMisalignment(ctx, personID, sub, def, answer.Value, threshold)
		if !ok {
			// Similarity could not be computed; keep the item alive under
			// the weaker classification rather than dropping it.
			reason = ReasonStale
			break
		}
		if !misaligned {
			return Item{}, false
		}
		reason = ReasonMisaligned
	}

	return Item{
		TargetID:   sub.ownerID,
		EntityID:   sub.id,
		EntityKind: string(sub.kind),
		EntityName: sub.name,
		Attribute:  def.Name,
		Reason:     reason,
		Priority:   r.priority(reason, def),
	}, true
}

// checkMisalignment compares the person's fresh answer against the subject
// owner's self-answer. Self-owned subjects have no counterpart and are
// therefore satisfied. ok=false means the check itself failed.
func (r *Resolver) checkMisalignment(ctx context.Context, personID string, sub subject, def ontology.Definition, value string, threshold float64) (misaligned, ok bool) {
	if sub.ownerID == personID {
		return false, true
	}

	counterpart, err := r.answers.GetAnswer(ctx, sub.ownerID, sub.id, def.Name)
	if err != nil {
		logger.Warn("Counterpart lookup failed during pending scan",
			zap.String("entity", sub.id),
			zap.String("attribute", def.Name),
			zap.Error(err),
		)
		return false, false
	}
	if counterpart == nil || counterpart.Refused {
		// Nothing to disagree with; the owner's side is their own pending item.
		return false, true
	}

	score, err := r.scorer.TryScore(ctx, value, counterpart.Value, def)
	if err != nil {
		logger.Warn("Similarity check failed during pending scan",
			zap.String("entity", sub.id),
			zap.String("attribute", def.Name),
			zap.Error(err),
		)
		return false, false
	}
	return score < threshold, true
}

// priority: lower is more urgent. Missing outranks misaligned outranks stale,
// and important attributes outrank peripheral ones within a class.
func (r *Resolver) priority(reason Reason, def ontology.Definition) int {
	p := r.cfg.BasePriority
	switch reason {
	case ReasonMissing:
		p -= r.cfg.MissingBonus
	case ReasonMisaligned:
		p -= r.cfg.MisalignedBonus
	case ReasonStale:
		p -= r.cfg.StaleBonus
	}
	if def.Important {
		p -= r.cfg.ImportantBonus
	}
	return p
}
