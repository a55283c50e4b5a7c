package handlers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alignlens/backend/internal/ontology"
	"github.com/alignlens/backend/internal/store/models"
	"github.com/alignlens/backend/internal/store/sqlite"
	"github.com/alignlens/backend/pkg/logger"
)

type AnswersHandler struct {
	store    *sqlite.Client
	registry *ontology.Registry
}

func NewAnswersHandler(store *sqlite.Client, registry *ontology.Registry) *AnswersHandler {
	return &AnswersHandler{store: store, registry: registry}
}

// SubmitAnswer records a perception, superseding the respondent's previous
// answer for the same (entity, attribute). A refusal carries no value and
// removes the tuple from future obligations until reset.
func (h *AnswersHandler) SubmitAnswer(c *fiber.Ctx) error {
	var req struct {
		RespondentID string `json:"respondent_id"`
		EntityID     string `json:"entity_id"`
		Attribute    string `json:"attribute"`
		Value        string `json:"value"`
		Refused      bool   `json:"refused"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.RespondentID == "" || req.EntityID == "" || req.Attribute == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "respondent_id, entity_id and attribute are required",
		})
	}

	def, ok := h.registry.Get(req.Attribute)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unknown attribute %q", req.Attribute),
		})
	}

	if !req.Refused {
		if err := validateValue(req.Value, def); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	answer := &models.Answer{
		ID:           uuid.New().String(),
		RespondentID: req.RespondentID,
		EntityID:     req.EntityID,
		Attribute:    req.Attribute,
		Value:        req.Value,
		Refused:      req.Refused,
		SubmittedAt:  time.Now(),
	}
	if answer.Refused {
		answer.Value = ""
	}

	if err := h.store.UpsertAnswer(c.Context(), answer); err != nil {
		logger.Error("Failed to record answer", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record answer",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      answer.ID,
		"refused": answer.Refused,
	})
}

// ResetRefusal makes a refused tuple answerable again.
func (h *AnswersHandler) ResetRefusal(c *fiber.Ctx) error {
	var req struct {
		RespondentID string `json:"respondent_id"`
		EntityID     string `json:"entity_id"`
		Attribute    string `json:"attribute"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.RespondentID == "" || req.EntityID == "" || req.Attribute == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "respondent_id, entity_id and attribute are required",
		})
	}

	if err := h.store.ResetRefusal(c.Context(), req.RespondentID, req.EntityID, req.Attribute); err != nil {
		logger.Error("Failed to reset refusal", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset refusal",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AnswersHandler) ListAnswersForEntity(c *fiber.Ctx) error {
	answers, err := h.store.ListAnswersForEntity(c.Context(), c.Params("id"))
	if err != nil {
		logger.Error("Failed to list answers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list answers",
		})
	}

	result := make([]fiber.Map, 0, len(answers))
	for _, answer := range answers {
		result = append(result, fiber.Map{
			"respondent_id": answer.RespondentID,
			"attribute":     answer.Attribute,
			"value":         answer.Value,
			"refused":       answer.Refused,
			"submitted_at":  answer.SubmittedAt.Unix(),
		})
	}
	return c.JSON(fiber.Map{"answers": result})
}

func validateValue(value string, def ontology.Definition) error {
	switch def.Type {
	case ontology.TypeSingleChoice:
		for _, allowed := range def.AllowedValues {
			if strings.EqualFold(value, allowed) {
				return nil
			}
		}
		return fmt.Errorf("value %q is not one of the allowed choices for %q", value, def.Name)
	case ontology.TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "false":
			return nil
		}
		return fmt.Errorf("value %q is not a boolean for %q", value, def.Name)
	case ontology.TypeInteger:
		if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
			return fmt.Errorf("value %q is not an integer for %q", value, def.Name)
		}
	case ontology.TypeReal:
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("value %q is not a finite number for %q", value, def.Name)
		}
	case ontology.TypeDate:
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if _, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
				return nil
			}
		}
		return fmt.Errorf("value %q is not a date for %q", value, def.Name)
	}
	return nil
}
