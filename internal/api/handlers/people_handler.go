package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alignlens/backend/internal/store/models"
	"github.com/alignlens/backend/internal/store/sqlite"
	"github.com/alignlens/backend/pkg/logger"
)

type PeopleHandler struct {
	store *sqlite.Client
}

func NewPeopleHandler(store *sqlite.Client) *PeopleHandler {
	return &PeopleHandler{store: store}
}

func (h *PeopleHandler) CreatePerson(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	person := &models.Person{
		ID:        uuid.New().String(),
		Name:      req.Name,
		CreatedAt: time.Now(),
	}

	if err := h.store.CreatePerson(c.Context(), person); err != nil {
		logger.Error("Failed to create person", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create person",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":   person.ID,
		"name": person.Name,
	})
}

func (h *PeopleHandler) GetPerson(c *fiber.Ctx) error {
	person, err := h.store.GetPerson(c.Context(), c.Params("id"))
	if err != nil {
		logger.Error("Failed to get person", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get person",
		})
	}
	if person == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Person not found",
		})
	}

	return c.JSON(fiber.Map{
		"id":         person.ID,
		"name":       person.Name,
		"created_at": person.CreatedAt.Unix(),
	})
}

func (h *PeopleHandler) ListPeople(c *fiber.Ctx) error {
	persons, err := h.store.ListPersons(c.Context())
	if err != nil {
		logger.Error("Failed to list people", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list people",
		})
	}

	result := make([]fiber.Map, 0, len(persons))
	for _, person := range persons {
		result = append(result, fiber.Map{
			"id":   person.ID,
			"name": person.Name,
		})
	}
	return c.JSON(fiber.Map{"people": result})
}
