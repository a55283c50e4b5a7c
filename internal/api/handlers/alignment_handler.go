package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/alignlens/backend/internal/alignment"
	"github.com/alignlens/backend/pkg/logger"
)

type AlignmentHandler struct {
	graph *alignment.Graph
}

func NewAlignmentHandler(graph *alignment.Graph) *AlignmentHandler {
	return &AlignmentHandler{graph: graph}
}

// AddAlignment is idempotent; repeating it succeeds without effect.
func (h *AlignmentHandler) AddAlignment(c *fiber.Ctx) error {
	source := c.Params("id")
	target := c.Params("target")

	if err := h.graph.AddEdge(c.Context(), source, target); err != nil {
		logger.Error("Failed to add alignment edge", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add alignment",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveAlignment is idempotent; removing a missing edge succeeds.
func (h *AlignmentHandler) RemoveAlignment(c *fiber.Ctx) error {
	source := c.Params("id")
	target := c.Params("target")

	if err := h.graph.RemoveEdge(c.Context(), source, target); err != nil {
		logger.Error("Failed to remove alignment edge", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove alignment",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AlignmentHandler) ListAlignments(c *fiber.Ctx) error {
	targets, err := h.graph.TargetsOf(c.Context(), c.Params("id"))
	if err != nil {
		logger.Error("Failed to list alignments", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list alignments",
		})
	}
	if targets == nil {
		targets = []string{}
	}
	return c.JSON(fiber.Map{"targets": targets})
}
