package services

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rohits-web03/opsdash/internal/attachments"
	"github.com/rohits-web03/opsdash/internal/logger"
	"github.com/rohits-web03/opsdash/internal/models"
	"github.com/rohits-web03/opsdash/internal/repositories"
)

// TaskFields are the user-editable columns of a task.
type TaskFields struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	AssigneeID  *uuid.UUID
	ProjectID   *uuid.UUID
}

func (f TaskFields) apply(t *models.Task) {
	TaskPatch{TaskFields: f}.apply(t)
}

// TaskPatch changes the fields named in Only, by their JSON names. A nil Only
// replaces every field.
type TaskPatch struct {
	TaskFields
	Only []string
}

func (p TaskPatch) has(name string) bool {
	return p.Only == nil || slices.Contains(p.Only, name)
}

func (p TaskPatch) apply(t *models.Task) {
	if p.has("title") {
		t.Title = p.Title
	}
	if p.has("description") {
		t.Description = p.Description
	}
	if p.has("status") {
		t.Status = p.Status
		if t.Status == "" {
			t.Status = models.TaskTodo
		}
	}
	if p.has("priority") {
		t.Priority = p.Priority
		if t.Priority == "" {
			t.Priority = "medium"
		}
	}
	if p.has("dueDate") {
		t.DueDate = p.DueDate
	}
	if p.has("assigneeId") {
		t.AssigneeID = p.AssigneeID
	}
	if p.has("projectId") {
		t.ProjectID = p.ProjectID
	}
}

// TaskService owns task records and keeps their attachment lists in step with storage.
type TaskService struct {
	tasks    *repositories.TaskRepository
	staff    *repositories.Repository[models.Staff]
	projects *repositories.Repository[models.Project]
	files    *attachments.Store
	locks    attachments.Locker
	log      *logger.Logger
}

func NewTaskService(
	tasks *repositories.TaskRepository,
	staff *repositories.Repository[models.Staff],
	projects *repositories.Repository[models.Project],
	files *attachments.Store,
	locks attachments.Locker,
	log *logger.Logger,
) *TaskService {
	if locks == nil {
		locks = attachments.NewKeyedMutex()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TaskService{tasks: tasks, staff: staff, projects: projects, files: files, locks: locks, log: log}
}

func (s *TaskService) List(ctx context.Context, opts repositories.ListOptions) ([]models.Task, int64, error) {
	return s.tasks.List(ctx, opts)
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.tasks.Get(ctx, id)
}

// Create stores files first and inserts the task only once every file is on
// storage. If the insert fails the new files are discarded.
func (s *TaskService) Create(ctx context.Context, fields TaskFields, files []attachments.File) (*models.Task, error) {
	if err := s.checkRefs(ctx, fields); err != nil {
		return nil, err
	}

	saved, err := s.files.SaveAll(ctx, files)
	if err != nil {
		return nil, err
	}

	task := &models.Task{Attachments: models.Attachments(saved)}
	fields.apply(task)
	if err := s.tasks.Create(ctx, task); err != nil {
		s.logCleanup(ctx, uuid.Nil, s.files.Discard(ctx, saved))
		return nil, err
	}

	s.log.For(ctx).Info("task created",
		zap.String("task_id", task.ID.String()),
		zap.Int("attachments", len(saved)))
	return s.tasks.Get(ctx, task.ID)
}

// Update applies patch (when non-nil), stores newFiles and removes the named
// attachments, then writes the task once. A failure leaves the stored task as it was.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, patch *TaskPatch, newFiles []attachments.File, remove []string) (*models.Task, error) {
	unlock, err := s.locks.Lock(ctx, id.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch != nil {
		if err := s.checkRefs(ctx, patch.TaskFields); err != nil {
			return nil, err
		}
		patch.apply(task)
	}

	delta, err := s.files.ReplaceBatch(ctx, task, newFiles, remove)
	if err != nil {
		return nil, err
	}
	s.logCleanup(ctx, id, delta.Cleanup)

	task.Attachments = delta.Apply(task.Attachments)
	if err := s.tasks.Save(ctx, task); err != nil {
		s.logCleanup(ctx, id, s.files.Discard(ctx, delta.Added))
		if len(delta.Removed) > 0 {
			s.log.For(ctx).Error("task update failed after attachment files were deleted",
				zap.String("task_id", id.String()),
				zap.Strings("filenames", delta.Removed),
				zap.Error(err))
		}
		return nil, err
	}

	if !delta.Empty() {
		s.log.For(ctx).Info("task attachments changed",
			zap.String("task_id", id.String()),
			zap.Int("added", len(delta.Added)),
			zap.Int("removed", len(delta.Removed)))
	}
	return s.tasks.Get(ctx, id)
}

// AddAttachments appends files to an existing task.
func (s *TaskService) AddAttachments(ctx context.Context, id uuid.UUID, files []attachments.File) (*models.Task, error) {
	return s.Update(ctx, id, nil, files, nil)
}

// RemoveAttachment drops one attachment and returns the task with its updated list.
// The entry is removed even if its file could not be deleted from storage.
func (s *TaskService) RemoveAttachment(ctx context.Context, id uuid.UUID, filename string) (*models.Task, error) {
	unlock, err := s.locks.Lock(ctx, id.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := s.files.Remove(ctx, task, filename)
	if err != nil {
		return nil, err
	}
	s.logCleanup(ctx, id, report)

	updatedAt, err := s.tasks.SetAttachments(ctx, id, task.Version, task.Attachments)
	if err != nil {
		return nil, err
	}
	task.Version++
	task.UpdatedAt = updatedAt
	return task, nil
}

// Delete removes the task record, then its files. File failures are logged only.
func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.locks.Lock(ctx, id.String())
	if err != nil {
		return err
	}
	defer unlock()

	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.logCleanup(ctx, id, s.files.RemoveAll(ctx, task))
	return nil
}

// Download opens an attachment of a task. The caller closes the content.
func (s *TaskService) Download(ctx context.Context, id uuid.UUID, filename string) (*attachments.Download, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.files.Retrieve(ctx, task, filename)
}

func (s *TaskService) checkRefs(ctx context.Context, f TaskFields) error {
	if f.AssigneeID != nil {
		if err := exists(ctx, s.staff, *f.AssigneeID); err != nil {
			return err
		}
	}
	if f.ProjectID != nil {
		if err := exists(ctx, s.projects, *f.ProjectID); err != nil {
			return err
		}
	}
	return nil
}

// logCleanup is where best-effort delete failures end: logged, then dropped.
func (s *TaskService) logCleanup(ctx context.Context, taskID uuid.UUID, report *attachments.CleanupReport) {
	if err := report.Err(); err != nil {
		s.log.For(ctx).Warn("attachment files left on storage",
			zap.String("task_id", taskID.String()),
			zap.Error(err))
	}
}

func exists[T any](ctx context.Context, repo *repositories.Repository[T], id uuid.UUID) error {
	ok, err := repo.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return repositories.ErrInvalidReference
	}
	return nil
}
