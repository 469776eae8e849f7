package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rohits-web03/opsdash/internal/models"
)

// TaskRepository stores tasks. Writes after creation are guarded by the task
// version so a stale read cannot overwrite a newer attachment list.
type TaskRepository struct {
	*Repository[models.Task]
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{
		Repository: NewRepository[models.Task](db, "Assignee", "Project"),
		db:         db,
	}
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	if t.Attachments == nil {
		t.Attachments = models.Attachments{}
	}
	t.Version = 1
	return r.Repository.Create(ctx, t)
}

// Save writes the fields and attachment list of t if the stored version still
// equals t.Version, then bumps the version. A mismatch returns ErrConflict.
func (r *TaskRepository) Save(ctx context.Context, t *models.Task) error {
	if t.Attachments == nil {
		t.Attachments = models.Attachments{}
	}
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Updates(map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"status":      t.Status,
			"priority":    t.Priority,
			"due_date":    t.DueDate,
			"assignee_id": t.AssigneeID,
			"project_id":  t.ProjectID,
			"attachments": t.Attachments,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  now,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, t.ID)
	}
	t.Version++
	t.UpdatedAt = now
	return nil
}

// Update is Save; task writes always go through the version guard.
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	return r.Save(ctx, t)
}

// SetAttachments replaces only the attachment list, with the same version guard
// as Save. It returns the updated_at it wrote.
func (r *TaskRepository) SetAttachments(ctx context.Context, id uuid.UUID, version int, list models.Attachments) (time.Time, error) {
	if list == nil {
		list = models.Attachments{}
	}
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"attachments": list,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  now,
		})
	if res.Error != nil {
		return time.Time{}, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return time.Time{}, r.missOrConflict(ctx, id)
	}
	return now, nil
}

func (r *TaskRepository) missOrConflict(ctx context.Context, id uuid.UUID) error {
	ok, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return ErrConflict
}

// Recent returns the most recently updated tasks.
func (r *TaskRepository) Recent(ctx context.Context, n int) ([]models.Task, error) {
	var tasks []models.Task
	err := r.query(ctx).Order("updated_at DESC").Limit(n).Find(&tasks).Error
	return tasks, err
}
