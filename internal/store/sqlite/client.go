package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/alignlens/backend/internal/store/models"
	"github.com/alignlens/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		owner_id TEXT NOT NULL,
		parent_id TEXT,
		dependency_ids TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (owner_id) REFERENCES persons(id)
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_active ON tasks(active);

	CREATE TABLE IF NOT EXISTS answers (
		id TEXT PRIMARY KEY,
		respondent_id TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		attribute TEXT NOT NULL,
		value TEXT,
		refused INTEGER NOT NULL DEFAULT 0,
		submitted_at INTEGER NOT NULL,
		UNIQUE (respondent_id, entity_id, attribute)
	);
	CREATE INDEX IF NOT EXISTS idx_answers_entity ON answers(entity_id);
	CREATE INDEX IF NOT EXISTS idx_answers_respondent ON answers(respondent_id);

	CREATE TABLE IF NOT EXISTS answer_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		respondent_id TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		attribute TEXT NOT NULL,
		value TEXT,
		refused INTEGER NOT NULL DEFAULT 0,
		submitted_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_tuple ON answer_history(respondent_id, entity_id, attribute);

	CREATE TABLE IF NOT EXISTS alignment_edges (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (source_id, target_id),
		FOREIGN KEY (source_id) REFERENCES persons(id),
		FOREIGN KEY (target_id) REFERENCES persons(id)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_source ON alignment_edges(source_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

func (c *Client) CreatePerson(ctx context.Context, person *models.Person) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO persons (id, name, created_at) VALUES (?, ?, ?)`,
		person.ID, person.Name, person.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}
	return nil
}

func (c *Client) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	var person models.Person
	var createdAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM persons WHERE id = ?`, id,
	).Scan(&person.ID, &person.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	person.CreatedAt = time.Unix(createdAt, 0)
	return &person, nil
}

func (c *Client) ListPersons(ctx context.Context) ([]models.Person, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM persons ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		var person models.Person
		var createdAt int64
		if err := rows.Scan(&person.ID, &person.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		person.CreatedAt = time.Unix(createdAt, 0)
		persons = append(persons, person)
	}
	return persons, rows.Err()
}

func (c *Client) CreateTask(ctx context.Context, task *models.Task) error {
	deps, err := json.Marshal(task.DependencyIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal dependencies: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, owner_id, parent_id, dependency_ids, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		task.ID, task.Title, task.Description, task.OwnerID, task.ParentID,
		string(deps), task.CreatedAt.Unix(), task.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, title, description, owner_id, parent_id, dependency_ids, active, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasksOwnedBy returns the active tasks owned by a person, in creation
// order. Deactivated tasks stay in the table because answers may still
// reference them, but they no longer generate obligations.
func (c *Client) ListTasksOwnedBy(ctx context.Context, ownerID string) ([]models.Task, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, title, description, owner_id, parent_id, dependency_ids, active, created_at, updated_at
		 FROM tasks WHERE owner_id = ? AND active = 1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// DeactivateTask soft-deletes a task. No-op when already inactive.
func (c *Client) DeactivateTask(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE tasks SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate task: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	var parentID, deps sql.NullString
	var active int
	var createdAt, updatedAt int64

	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.OwnerID,
		&parentID, &deps, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	task.ParentID = parentID.String
	task.Active = active == 1
	task.CreatedAt = time.Unix(createdAt, 0)
	task.UpdatedAt = time.Unix(updatedAt, 0)

	if deps.Valid && deps.String != "" {
		if err := json.Unmarshal([]byte(deps.String), &task.DependencyIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dependencies: %w", err)
		}
	}
	return &task, nil
}

// UpsertAnswer records a submission. The previous current answer for the same
// (respondent, entity, attribute), if any, is appended to answer_history
// before being replaced; staleness is always judged from the current row's
// submitted_at.
func (c *Client) UpsertAnswer(ctx context.Context, answer *models.Answer) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO answer_history (respondent_id, entity_id, attribute, value, refused, submitted_at)
		 SELECT respondent_id, entity_id, attribute, value, refused, submitted_at
		 FROM answers WHERE respondent_id = ? AND entity_id = ? AND attribute = ?`,
		answer.RespondentID, answer.EntityID, answer.Attribute,
	)
	if err != nil {
		return fmt.Errorf("failed to archive previous answer: %w", err)
	}

	refused := 0
	if answer.Refused {
		refused = 1
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO answers (id, respondent_id, entity_id, attribute, value, refused, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (respondent_id, entity_id, attribute)
		 DO UPDATE SET value = excluded.value, refused = excluded.refused, submitted_at = excluded.submitted_at`,
		answer.ID, answer.RespondentID, answer.EntityID, answer.Attribute,
		answer.Value, refused, answer.SubmittedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit answer: %w", err)
	}

	logger.Debug("Answer recorded",
		zap.String("respondent", answer.RespondentID),
		zap.String("entity", answer.EntityID),
		zap.String("attribute", answer.Attribute),
		zap.Bool("refused", answer.Refused),
	)
	return nil
}

func (c *Client) GetAnswer(ctx context.Context, respondentID, entityID, attribute string) (*models.Answer, error) {
	var answer models.Answer
	var value sql.NullString
	var refused int
	var submittedAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT id, respondent_id, entity_id, attribute, value, refused, submitted_at
		 FROM answers WHERE respondent_id = ? AND entity_id = ? AND attribute = ?`,
		respondentID, entityID, attribute,
	).Scan(&answer.ID, &answer.RespondentID, &answer.EntityID, &answer.Attribute,
		&value, &refused, &submittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}

	answer.Value = value.String
	answer.Refused = refused == 1
	answer.SubmittedAt = time.Unix(submittedAt, 0)
	return &answer, nil
}

func (c *Client) ListAnswersForEntity(ctx context.Context, entityID string) ([]models.Answer, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, respondent_id, entity_id, attribute, value, refused, submitted_at
		 FROM answers WHERE entity_id = ? ORDER BY respondent_id, attribute`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var answer models.Answer
		var value sql.NullString
		var refused int
		var submittedAt int64
		if err := rows.Scan(&answer.ID, &answer.RespondentID, &answer.EntityID,
			&answer.Attribute, &value, &refused, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answer.Value = value.String
		answer.Refused = refused == 1
		answer.SubmittedAt = time.Unix(submittedAt, 0)
		answers = append(answers, answer)
	}
	return answers, rows.Err()
}

// ResetRefusal removes a refusal so the tuple becomes an obligation again.
// No-op when the current answer is not a refusal.
func (c *Client) ResetRefusal(ctx context.Context, respondentID, entityID, attribute string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM answers WHERE respondent_id = ? AND entity_id = ? AND attribute = ? AND refused = 1`,
		respondentID, entityID, attribute,
	)
	if err != nil {
		return fmt.Errorf("failed to reset refusal: %w", err)
	}
	return nil
}

// InsertEdge is idempotent: re-adding an existing edge is a no-op.
func (c *Client) InsertEdge(ctx context.Context, sourceID, targetID string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alignment_edges (source_id, target_id, created_at) VALUES (?, ?, ?)`,
		sourceID, targetID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

// DeleteEdge is idempotent: removing a non-existent edge is a no-op.
func (c *Client) DeleteEdge(ctx context.Context, sourceID, targetID string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM alignment_edges WHERE source_id = ? AND target_id = ?`,
		sourceID, targetID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	return nil
}

func (c *Client) ListEdgesFrom(ctx context.Context, sourceID string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT target_id FROM alignment_edges WHERE source_id = ? ORDER BY created_at, target_id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

func (c *Client) HasEdge(ctx context.Context, sourceID, targetID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM alignment_edges WHERE source_id = ? AND target_id = ?`,
		sourceID, targetID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check edge: %w", err)
	}
	return true, nil
}
