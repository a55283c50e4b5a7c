package handlers

import (
	"sort"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/alignlens/backend/internal/compare"
	"github.com/alignlens/backend/internal/pending"
	"github.com/alignlens/backend/pkg/logger"
)

// InsightsHandler serves the two derived views: where a person's perceptions
// diverge from their alignment targets, and what they still owe answers for.
type InsightsHandler struct {
	comparator *compare.Comparator
	resolver   *pending.Resolver
}

func NewInsightsHandler(comparator *compare.Comparator, resolver *pending.Resolver) *InsightsHandler {
	return &InsightsHandler{comparator: comparator, resolver: resolver}
}

func (h *InsightsHandler) GetMisalignments(c *fiber.Ctx) error {
	personID := c.Params("id")

	opts := compare.Options{
		IncludeAll: c.Query("include_all") == "true",
	}
	if raw := c.Query("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || threshold > 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "threshold must be a number in [0,1]",
			})
		}
		opts.Threshold = &threshold
	}

	records, err := h.comparator.CompareAll(c.Context(), personID, opts)
	if err != nil {
		logger.Error("Failed to compare perceptions",
			zap.String("person", personID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compare perceptions",
		})
	}

	// Ranking convention: worst agreement first.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score < records[j].Score
	})

	if records == nil {
		records = []compare.Misalignment{}
	}
	return c.JSON(fiber.Map{
		"person_id":     personID,
		"misalignments": records,
	})
}

func (h *InsightsHandler) GetPending(c *fiber.Ctx) error {
	personID := c.Params("id")

	var opts pending.Options
	if raw := c.Query("freshness_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "freshness_hours must be a positive integer",
			})
		}
		opts.FreshnessWindow = time.Duration(hours) * time.Hour
	}

	items, err := h.resolver.PendingFor(c.Context(), personID, opts)
	if err != nil {
		logger.Error("Failed to resolve pending items",
			zap.String("person", personID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve pending items",
		})
	}

	if items == nil {
		items = []pending.Item{}
	}
	return c.JSON(fiber.Map{
		"person_id": personID,
		"pending":   items,
	})
}
