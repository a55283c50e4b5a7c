// Package compare walks a person's alignment targets and scores every
// (entity, attribute) pair both sides have answered, surfacing the pairs
// where their perceptions diverge.
package compare

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

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

// Misalignment is one below-threshold (or, with IncludeAll, any) scored pair.
// Derived, never stored; the caller's ranking convention is ascending score.
type Misalignment struct {
	TargetID   string  `json:"target_id"`
	EntityID   string  `json:"entity_id"`
	EntityKind string  `json:"entity_kind"`
	EntityName string  `json:"entity_name"`
	Attribute  string  `json:"attribute"`
	MyValue    string  `json:"my_value"`
	TheirValue string  `json:"their_value"`
	Score      float64 `json:"score"`
}

type Options struct {
	// Threshold overrides the configured default when non-nil.
	Threshold *float64
	// IncludeAll emits every scored pair regardless of threshold. This is
	// the "show all raw scores" path; filtering stays in one place.
	IncludeAll bool
}

type Config struct {
	DefaultThreshold float64
	MaxConcurrent    int
}

type Comparator struct {
	graph    AlignmentView
	answers  AnswerStore
	entities EntityStore
	registry *ontology.Registry
	scorer   Scorer
	cfg      Config
}

func NewComparator(graph AlignmentView, answers AnswerStore, entities EntityStore, registry *ontology.Registry, scorer Scorer, cfg Config) *Comparator {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	return &Comparator{
		graph:    graph,
		answers:  answers,
		entities: entities,
		registry: registry,
		scorer:   scorer,
		cfg:      cfg,
	}
}

type entityRef struct {
	ID   string
	Name string
	Kind ontology.EntityKind
}

type candidate struct {
	target string
	entity entityRef
	def    ontology.Definition
	mine   string
	theirs string
}

// CompareAll scores every pair answered by both the person and the target the
// entity belongs to. Pairs with a missing or refused side contribute nothing
// here (the resolver turns them into pending items). Output order follows
// enumeration order: targets in graph order, each target's profile before
// their tasks, attributes in ontology order.
func (c *Comparator) CompareAll(ctx context.Context, personID string, opts Options) ([]Misalignment, error) {
	start := time.Now()
	defer func() {
		metrics.ScanDuration.WithLabelValues("compare").Observe(time.Since(start).Seconds())
	}()

	targets, err := c.graph.TargetsOf(ctx, personID)
	if err != nil {
		return nil, err
	}

	candidates := c.collectCandidates(ctx, personID, targets)

	scores := make([]float64, len(candidates))
	failed := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrent)
	for i := range candidates {
		i := i
		g.Go(func() error {
			score, err := c.scorer.TryScore(gctx, candidates[i].mine, candidates[i].theirs, candidates[i].def)
			if err != nil {
				// One bad pair must not abort the scan.
				logger.Warn("Skipping pair after scoring failure",
					zap.String("entity", candidates[i].entity.ID),
					zap.String("attribute", candidates[i].def.Name),
					zap.Error(err),
				)
				metrics.PairsSkipped.Inc()
				failed[i] = true
				return nil
			}
			scores[i] = score
			return nil
		})
	}
	g.Wait()

	threshold := c.cfg.DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	var records []Misalignment
	for i, cand := range candidates {
		if failed[i] {
			continue
		}
		metrics.PairsCompared.Inc()

		misaligned := scores[i] < threshold
		if misaligned {
			metrics.MisalignmentsFound.Inc()
		}
		if !opts.IncludeAll && !misaligned {
			continue
		}

		records = append(records, Misalignment{
			TargetID:   cand.target,
			EntityID:   cand.entity.ID,
			EntityKind: string(cand.entity.Kind),
			EntityName: cand.entity.Name,
			Attribute:  cand.def.Name,
			MyValue:    cand.mine,
			TheirValue: cand.theirs,
			Score:      scores[i],
		})
	}
	return records, nil
}

func (c *Comparator) collectCandidates(ctx context.Context, personID string, targets []string) []candidate {
	var candidates []candidate
	for _, target := range targets {
		for _, entity := range c.entitiesOf(ctx, target) {
			for _, def := range c.registry.ForKind(entity.Kind) {
				mine, ok := c.lookupAnswer(ctx, personID, entity.ID, def.Name)
				if !ok {
					continue
				}
				theirs, ok := c.lookupAnswer(ctx, target, entity.ID, def.Name)
				if !ok {
					continue
				}
				candidates = append(candidates, candidate{
					target: target,
					entity: entity,
					def:    def,
					mine:   mine,
					theirs: theirs,
				})
			}
		}
	}
	return candidates
}

// entitiesOf returns the target themself (profile attributes) followed by
// their active tasks. Lookup failures skip the target rather than aborting;
// a dangling edge is a data inconsistency, not a caller error.
func (c *Comparator) entitiesOf(ctx context.Context, target string) []entityRef {
	person, err := c.entities.GetPerson(ctx, target)
	if err != nil || person == nil {
		logger.Warn("Skipping unknown alignment target",
			zap.String("target", target),
			zap.Error(err),
		)
		return nil
	}

	refs := []entityRef{{ID: person.ID, Name: person.Name, Kind: ontology.KindPerson}}

	tasks, err := c.entities.ListTasksOwnedBy(ctx, target)
	if err != nil {
		logger.Warn("Failed to list tasks for target, comparing profile only",
			zap.String("target", target),
			zap.Error(err),
		)
		return refs
	}
	for _, task := range tasks {
		refs = append(refs, entityRef{ID: task.ID, Name: task.Title, Kind: ontology.KindTask})
	}
	return refs
}

// lookupAnswer returns the answer value and whether the pair side is usable:
// absent and refused answers both disqualify the pair.
func (c *Comparator) lookupAnswer(ctx context.Context, respondentID, entityID, attribute string) (string, bool) {
	answer, err := c.answers.GetAnswer(ctx, respondentID, entityID, attribute)
	if err != nil {
		logger.Warn("Answer lookup failed",
			zap.String("respondent", respondentID),
			zap.String("entity", entityID),
			zap.String("attribute", attribute),
			zap.Error(err),
		)
		return "", false
	}
	if answer == nil || answer.Refused {
		return "", false
	}
	return answer.Value, true
}
