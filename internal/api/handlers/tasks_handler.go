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

type TasksHandler struct {
	store *sqlite.Client
}

func NewTasksHandler(store *sqlite.Client) *TasksHandler {
	return &TasksHandler{store: store}
}

func (h *TasksHandler) CreateTask(c *fiber.Ctx) error {
	var req struct {
		Title         string   `json:"title"`
		Description   string   `json:"description"`
		OwnerID       string   `json:"owner_id"`
		ParentID      string   `json:"parent_id"`
		DependencyIDs []string `json:"dependency_ids"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Title == "" || req.OwnerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title and owner_id are required",
		})
	}

	owner, err := h.store.GetPerson(c.Context(), req.OwnerID)
	if err != nil {
		logger.Error("Failed to look up owner", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create task",
		})
	}
	if owner == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner_id does not reference a known person",
		})
	}

	now := time.Now()
	task := &models.Task{
		ID:            uuid.New().String(),
		Title:         req.Title,
		Description:   req.Description,
		OwnerID:       req.OwnerID,
		ParentID:      req.ParentID,
		DependencyIDs: req.DependencyIDs,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.store.CreateTask(c.Context(), task); err != nil {
		logger.Error("Failed to create task", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create task",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       task.ID,
		"title":    task.Title,
		"owner_id": task.OwnerID,
	})
}

func (h *TasksHandler) GetTask(c *fiber.Ctx) error {
	task, err := h.store.GetTask(c.Context(), c.Params("id"))
	if err != nil {
		logger.Error("Failed to get task", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get task",
		})
	}
	if task == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	return c.JSON(fiber.Map{
		"id":             task.ID,
		"title":          task.Title,
		"description":    task.Description,
		"owner_id":       task.OwnerID,
		"parent_id":      task.ParentID,
		"dependency_ids": task.DependencyIDs,
		"active":         task.Active,
	})
}

// DeactivateTask soft-deletes: answers referencing the task stay intact.
func (h *TasksHandler) DeactivateTask(c *fiber.Ctx) error {
	if err := h.store.DeactivateTask(c.Context(), c.Params("id")); err != nil {
		logger.Error("Failed to deactivate task", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to deactivate task",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
