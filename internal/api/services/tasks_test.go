package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rohits-web03/opsdash/internal/attachments"
	"github.com/rohits-web03/opsdash/internal/config"
	"github.com/rohits-web03/opsdash/internal/models"
	"github.com/rohits-web03/opsdash/internal/repositories"
	"github.com/rohits-web03/opsdash/internal/repositories/repotest"
)

type taskFixture struct {
	svc      *TaskService
	db       *gorm.DB
	backend  *attachments.LocalBackend
	tasks    *repositories.TaskRepository
	staff    *repositories.Repository[models.Staff]
	projects *repositories.Repository[models.Project]
	dir      string
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	db := repotest.Open(t)

	backend, err := attachments.NewLocalBackend(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	f := &taskFixture{
		db:       db,
		backend:  backend,
		tasks:    repositories.NewTaskRepository(db),
		staff:    repositories.NewRepository[models.Staff](db),
		projects: repositories.NewRepository[models.Project](db, "Manager"),
		dir:      backend.Dir(),
	}
	f.svc = f.serviceWith(backend)
	return f
}

func (f *taskFixture) serviceWith(backend attachments.Backend) *TaskService {
	store := attachments.NewStore(backend, attachments.Options{
		MaxFileSize:      10 << 20,
		AllowedMimeTypes: config.DefaultAllowedMimeTypes,
	}, nil)
	return NewTaskService(f.tasks, f.staff, f.projects, store, attachments.NewKeyedMutex(), nil)
}

// racingBackend runs onPut once, before the first file is written.
type racingBackend struct {
	attachments.Backend
	onPut func()
}

func (b *racingBackend) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if b.onPut != nil {
		b.onPut()
		b.onPut = nil
	}
	return b.Backend.Put(ctx, name, r, size, contentType)
}

func upload(name, mimeType, body string) attachments.File {
	return attachments.File{OriginalName: name, MimeType: mimeType, Size: int64(len(body)), Content: bytes.NewReader([]byte(body))}
}

func filesOnDisk(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestCreateTaskWithAttachments(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	assignee := &models.Staff{Name: "Lin", Email: "lin@example.com", Role: "ops", Status: "active"}
	if err := f.staff.Create(ctx, assignee); err != nil {
		t.Fatal(err)
	}

	task, err := f.svc.Create(ctx, TaskFields{Title: "Quarter close", AssigneeID: &assignee.ID},
		[]attachments.File{upload("invoice.pdf", "application/pdf", "%PDF-1.7")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if task.Status != models.TaskTodo || task.Priority != "medium" {
		t.Errorf("defaults not applied: %q %q", task.Status, task.Priority)
	}
	if task.Assignee == nil || task.Assignee.Name != "Lin" {
		t.Errorf("assignee not populated: %+v", task.Assignee)
	}
	if len(task.Attachments) != 1 || task.Attachments[0].OriginalName != "invoice.pdf" {
		t.Fatalf("Attachments = %v", task.Attachments)
	}

	d, err := f.svc.Download(ctx, task.ID, task.Attachments[0].Filename)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer d.Content.Close()
	body, _ := io.ReadAll(d.Content)
	if string(body) != "%PDF-1.7" {
		t.Errorf("body = %q", body)
	}
}

func TestCreateTaskRejectsBadInputBeforeWriting(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	missing := uuid.New()
	_, err := f.svc.Create(ctx, TaskFields{Title: "x", ProjectID: &missing},
		[]attachments.File{upload("a.txt", "text/plain", "a")})
	if !errors.Is(err, repositories.ErrInvalidReference) {
		t.Fatalf("err = %v, want ErrInvalidReference", err)
	}

	_, err = f.svc.Create(ctx, TaskFields{Title: "x"}, []attachments.File{
		upload("a.txt", "text/plain", "a"),
		upload("setup.exe", "application/x-msdownload", "MZ"),
	})
	if !errors.Is(err, attachments.ErrUnsupportedFileType) {
		t.Fatalf("err = %v, want ErrUnsupportedFileType", err)
	}

	if n := filesOnDisk(t, f.dir); n != 0 {
		t.Errorf("%d files written for rejected requests", n)
	}
	if n, _ := f.tasks.Count(ctx, nil); n != 0 {
		t.Errorf("%d tasks created", n)
	}
}

func TestUpdateTaskReplacesAttachments(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, TaskFields{Title: "Audit"}, []attachments.File{
		upload("keep.txt", "text/plain", "keep"),
		upload("drop.txt", "text/plain", "drop"),
	})
	if err != nil {
		t.Fatal(err)
	}
	drop := task.Attachments[1]

	updated, err := f.svc.Update(ctx, task.ID,
		&TaskPatch{TaskFields: TaskFields{Title: "Audit 2025", Status: models.TaskInProgress, Priority: "high"}},
		[]attachments.File{upload("photo.png", "image/png", "png")},
		[]string{drop.Filename})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.Title != "Audit 2025" || updated.Status != models.TaskInProgress {
		t.Errorf("fields not updated: %+v", updated)
	}
	names := []string{}
	for _, a := range updated.Attachments {
		names = append(names, a.OriginalName)
	}
	if len(names) != 2 || names[0] != "keep.txt" || names[1] != "photo.png" {
		t.Errorf("attachments = %v", names)
	}
	if updated.Version != task.Version+1 {
		t.Errorf("Version = %d, want %d", updated.Version, task.Version+1)
	}
	if n := filesOnDisk(t, f.dir); n != 2 {
		t.Errorf("%d files on disk, want 2", n)
	}
}

func TestUpdateTaskPatchKeepsUnsentFields(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	assignee := &models.Staff{Name: "Lin", Email: "lin@example.com", Role: "ops", Status: "active"}
	if err := f.staff.Create(ctx, assignee); err != nil {
		t.Fatal(err)
	}
	due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	task, err := f.svc.Create(ctx, TaskFields{
		Title: "Audit", Description: "Q1", Status: models.TaskReview, Priority: "urgent",
		DueDate: &due, AssigneeID: &assignee.ID,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := f.svc.Update(ctx, task.ID, &TaskPatch{
		TaskFields: TaskFields{Title: "Audit 2025"},
		Only:       []string{"title"},
	}, nil, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Audit 2025" || updated.Description != "Q1" || updated.Status != models.TaskReview ||
		updated.Priority != "urgent" || updated.DueDate == nil || updated.AssigneeID == nil || *updated.AssigneeID != assignee.ID {
		t.Errorf("unsent fields changed: %+v", updated)
	}

	cleared, err := f.svc.Update(ctx, task.ID, &TaskPatch{Only: []string{"assigneeId", "status"}}, nil, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cleared.AssigneeID != nil || cleared.Status != models.TaskTodo || cleared.Priority != "urgent" {
		t.Errorf("after clearing: assignee=%v status=%q priority=%q", cleared.AssigneeID, cleared.Status, cleared.Priority)
	}
}

func TestCreateTaskInsertFailureDiscardsFiles(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	if err := f.db.Migrator().DropTable(&models.Task{}); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Create(ctx, TaskFields{Title: "Audit"}, []attachments.File{
		upload("a.txt", "text/plain", "a"),
		upload("b.pdf", "application/pdf", "b"),
	})
	if err == nil {
		t.Fatal("Create succeeded without a tasks table")
	}
	if n := filesOnDisk(t, f.dir); n != 0 {
		t.Errorf("%d files left after a failed insert", n)
	}
}

func TestUpdateTaskConflictDiscardsNewFiles(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, TaskFields{Title: "Audit"}, []attachments.File{upload("a.txt", "text/plain", "a")})
	if err != nil {
		t.Fatal(err)
	}

	backend := &racingBackend{Backend: f.backend}
	backend.onPut = func() {
		// a writer outside this service's lock gets in first
		if _, err := f.tasks.SetAttachments(ctx, task.ID, task.Version, task.Attachments); err != nil {
			t.Errorf("competing write: %v", err)
		}
	}
	svc := f.serviceWith(backend)

	_, err = svc.Update(ctx, task.ID, &TaskPatch{TaskFields: TaskFields{Title: "Audit 2"}, Only: []string{"title"}},
		[]attachments.File{upload("b.txt", "text/plain", "b")}, nil)
	if !errors.Is(err, repositories.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	if n := filesOnDisk(t, f.dir); n != 1 {
		t.Errorf("%d files on disk, want only the original", n)
	}
	got, _ := f.svc.Get(ctx, task.ID)
	if got.Title != "Audit" || len(got.Attachments) != 1 || got.Version != task.Version+1 {
		t.Errorf("stored task = title %q version %d attachments %v", got.Title, got.Version, got.Attachments)
	}
}

func TestUpdateTaskFailureCommitsNothing(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, TaskFields{Title: "Audit"}, []attachments.File{upload("a.txt", "text/plain", "a")})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Update(ctx, task.ID, nil,
		[]attachments.File{upload("big.zip", "application/zip", "x")},
		[]string{"ghost.pdf"})
	if !errors.Is(err, attachments.ErrAttachmentNotFound) {
		t.Fatalf("err = %v, want ErrAttachmentNotFound", err)
	}

	got, _ := f.svc.Get(ctx, task.ID)
	if len(got.Attachments) != 1 || got.Version != task.Version {
		t.Errorf("task changed: version %d, attachments %v", got.Version, got.Attachments)
	}
	if n := filesOnDisk(t, f.dir); n != 1 {
		t.Errorf("%d files on disk, want 1", n)
	}
}

func TestRemoveAttachment(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, TaskFields{Title: "Audit"}, []attachments.File{
		upload("a.txt", "text/plain", "a"),
		upload("b.txt", "text/plain", "b"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.RemoveAttachment(ctx, task.ID, "ghost.pdf"); !errors.Is(err, attachments.ErrAttachmentNotFound) {
		t.Fatalf("err = %v, want ErrAttachmentNotFound", err)
	}

	target := task.Attachments[0].Filename
	updated, err := f.svc.RemoveAttachment(ctx, task.ID, target)
	if err != nil {
		t.Fatalf("RemoveAttachment: %v", err)
	}
	if len(updated.Attachments) != 1 || updated.Attachments[0].OriginalName != "b.txt" {
		t.Errorf("Attachments = %v", updated.Attachments)
	}
	if _, err := f.svc.Download(ctx, task.ID, target); !errors.Is(err, attachments.ErrAttachmentNotFound) {
		t.Errorf("Download after remove: %v", err)
	}

	stored, _ := f.svc.Get(ctx, task.ID)
	if len(stored.Attachments) != 1 || stored.Version != updated.Version {
		t.Errorf("stored version %d attachments %v, returned version %d", stored.Version, stored.Attachments, updated.Version)
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, not after %v", updated.UpdatedAt, task.UpdatedAt)
	}
	if d := stored.UpdatedAt.Sub(updated.UpdatedAt); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("returned UpdatedAt %v, stored %v", updated.UpdatedAt, stored.UpdatedAt)
	}
}

func TestDeleteTaskRemovesFiles(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, TaskFields{Title: "Audit"}, []attachments.File{
		upload("a.txt", "text/plain", "a"),
		upload("b.pdf", "application/pdf", "b"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := filesOnDisk(t, f.dir); n != 2 {
		t.Fatalf("%d files on disk", n)
	}

	if err := f.svc.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, task.ID); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	if n := filesOnDisk(t, f.dir); n != 0 {
		t.Errorf("%d files left after delete", n)
	}
	if err := f.svc.Delete(ctx, task.ID); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("second Delete: %v", err)
	}
}

func TestDownloadReportsMissingFile(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, TaskFields{Title: "Audit"}, []attachments.File{upload("a.txt", "text/plain", "a")})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(task.Attachments[0].Path); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Download(ctx, task.ID, task.Attachments[0].Filename); !errors.Is(err, attachments.ErrFileMissing) {
		t.Errorf("err = %v, want ErrFileMissing", err)
	}
}

func TestConcurrentAttachmentUpdatesAreNotLost(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, TaskFields{Title: "Audit"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	const n = 5
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := f.svc.AddAttachments(ctx, task.ID, []attachments.File{
				upload(string(rune('a'+i))+".txt", "text/plain", "x"),
			})
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("AddAttachments: %v", err)
		}
	}

	got, _ := f.svc.Get(ctx, task.ID)
	if len(got.Attachments) != n {
		t.Errorf("%d attachments persisted, want %d", len(got.Attachments), n)
	}
}
