package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rohits-web03/opsdash/internal/api/services"
	"github.com/rohits-web03/opsdash/internal/attachments"
	"github.com/rohits-web03/opsdash/internal/models"
	"github.com/rohits-web03/opsdash/internal/utils"
)

const (
	maxFilesPerRequest = 10
	multipartMemory    = 32 << 20
)

var taskFilters = map[string]string{
	"status":     "status",
	"priority":   "priority",
	"projectId":  "project_id",
	"assigneeId": "assignee_id",
}

type TaskInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	Status      string     `json:"status" validate:"omitempty,oneof=todo in-progress review completed"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"dueDate"`
	AssigneeID  *uuid.UUID `json:"assigneeId"`
	ProjectID   *uuid.UUID `json:"projectId"`
}

func (in TaskInput) fields() services.TaskFields {
	return services.TaskFields{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		AssigneeID:  in.AssigneeID,
		ProjectID:   in.ProjectID,
	}
}

// TaskUpdateInput is the JSON body of PUT /tasks/{id}. RemoveAttachments names
// stored filenames to drop in the same update.
type TaskUpdateInput struct {
	TaskInput
	RemoveAttachments []string `json:"removeAttachments"`
}

// GET /api/v1/tasks
// ListTasks godoc
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param status query string false "todo, in-progress, review or completed"
// @Param priority query string false "low, medium, high or urgent"
// @Param projectId query string false "Filter by project"
// @Param assigneeId query string false "Filter by assignee"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r, taskFilters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tasks, total, err := h.tasks.List(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Task list retrieved", utils.Page[models.Task]{
		Items: tasks,
		Total: total,
		Page:  opts.Page,
		Limit: opts.Limit,
	})
}

// GET /api/v1/tasks/{id}
// GetTask godoc
// @Summary Get a task with its assignee, project and attachments
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/tasks/{id} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	task, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Task retrieved", task)
}

// POST /api/v1/tasks
// CreateTaskJSON godoc
// @Summary Create a task without attachments
// @Tags Tasks
// @Accept json
// @Produce json
// @Param body body TaskInput true "Task"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/tasks [post]
func (h *Handler) CreateTaskJSON(w http.ResponseWriter, r *http.Request) {
	var in TaskInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	task, err := h.tasks.Create(r.Context(), in.fields(), nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Task created", task)
}

// POST /api/v1/tasks
// CreateTaskMultipart godoc
// @Summary Create a task with attachments
// @Description Task fields come from a "data" JSON part or from flat form fields.
// @Tags Tasks
// @Accept multipart/form-data
// @Produce json
// @Param data formData string false "Task fields as JSON"
// @Param title formData string false "Title (when data is not sent)"
// @Param files formData file false "Attachments" style(form) explode(true)
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload "Invalid fields, file too large or unsupported type"
// @Failure 500 {object} utils.Payload "Storage write failed"
// @Router /api/v1/tasks [post]
func (h *Handler) CreateTaskMultipart(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseMultipart(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer form.RemoveAll()

	in, _, err := formTaskInput(form)
	if err == nil {
		err = h.validate.Struct(&in)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	files, closeFiles, err := openFiles(form.File["files"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer closeFiles()

	task, err := h.tasks.Create(r.Context(), in.fields(), files)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Task created", task)
}

// PUT /api/v1/tasks/{id}
// UpdateTaskJSON godoc
// @Summary Replace a task's fields, optionally removing attachments
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param body body TaskUpdateInput true "Task"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload "Task or attachment not found"
// @Failure 409 {object} utils.Payload "Concurrent update"
// @Router /api/v1/tasks/{id} [put]
func (h *Handler) UpdateTaskJSON(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in TaskUpdateInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	task, err := h.tasks.Update(r.Context(), id, &services.TaskPatch{TaskFields: in.fields()}, nil, in.RemoveAttachments)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Task updated", task)
}

// PUT /api/v1/tasks/{id}
// UpdateTaskMultipart godoc
// @Summary Update a task, adding and removing attachments
// @Description Only the fields sent in "data" or as flat form fields change. The rest keep their stored values.
// @Tags Tasks
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Task ID"
// @Param data formData string false "Task fields as JSON"
// @Param files formData file false "New attachments" style(form) explode(true)
// @Param removeAttachments formData string false "Stored filenames to remove (JSON array or comma list)"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload "Task or attachment not found"
// @Failure 409 {object} utils.Payload "Concurrent update"
// @Failure 500 {object} utils.Payload "Storage write failed"
// @Router /api/v1/tasks/{id} [put]
func (h *Handler) UpdateTaskMultipart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	form, err := h.parseMultipart(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer form.RemoveAll()

	in, sent, err := formTaskInput(form)
	if err == nil && len(sent) > 0 {
		err = h.validate.StructPartial(&in, inputFields(sent)...)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var patch *services.TaskPatch
	if len(sent) > 0 {
		patch = &services.TaskPatch{TaskFields: in.fields(), Only: sent}
	}

	remove, err := removalNames(form)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	files, closeFiles, err := openFiles(form.File["files"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer closeFiles()

	task, err := h.tasks.Update(r.Context(), id, patch, files, remove)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Task updated", task)
}

// DELETE /api/v1/tasks/{id}
// DeleteTask godoc
// @Summary Delete a task and its attachment files
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/tasks/{id} [delete]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.tasks.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Task deleted", nil)
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize*maxFilesPerRequest+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, err
		}
		return nil, badRequest("invalid multipart form: %v", err)
	}
	if n := len(r.MultipartForm.File["files"]); n > maxFilesPerRequest {
		_ = r.MultipartForm.RemoveAll()
		return nil, badRequest("too many files: %d sent, at most %d allowed", n, maxFilesPerRequest)
	}
	return r.MultipartForm, nil
}

// taskFormFields maps form and JSON keys to TaskInput field names.
var taskFormFields = map[string]string{
	"title":       "Title",
	"description": "Description",
	"status":      "Status",
	"priority":    "Priority",
	"dueDate":     "DueDate",
	"assigneeId":  "AssigneeID",
	"projectId":   "ProjectID",
}

var flatTaskFields = []string{"title", "description", "status", "priority", "dueDate", "assigneeId", "projectId"}

func inputFields(keys []string) []string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, taskFormFields[k])
	}
	return names
}

// formTaskInput reads task fields from the "data" part, or from flat form
// fields when there is no "data" part. sent lists the keys the client included.
func formTaskInput(form *multipart.Form) (in TaskInput, sent []string, err error) {
	if data := form.Value["data"]; len(data) > 0 && strings.TrimSpace(data[0]) != "" {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal([]byte(data[0]), &keys); err != nil {
			return in, nil, badRequest("invalid data field: %v", err)
		}
		if err := json.Unmarshal([]byte(data[0]), &in); err != nil {
			return in, nil, badRequest("invalid data field: %v", err)
		}
		for _, k := range flatTaskFields {
			if _, ok := keys[k]; ok {
				sent = append(sent, k)
			}
		}
		return in, sent, nil
	}

	get := func(k string) string {
		if v := form.Value[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	for _, k := range flatTaskFields {
		if _, ok := form.Value[k]; ok {
			sent = append(sent, k)
		}
	}

	in.Title = get("title")
	in.Description = get("description")
	in.Status = get("status")
	in.Priority = get("priority")
	if in.DueDate, err = parseDate(get("dueDate")); err != nil {
		return in, sent, err
	}
	if in.AssigneeID, err = parseOptionalID("assigneeId", get("assigneeId")); err != nil {
		return in, sent, err
	}
	if in.ProjectID, err = parseOptionalID("projectId", get("projectId")); err != nil {
		return in, sent, err
	}
	return in, sent, nil
}

func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, badRequest("dueDate must be RFC 3339 or YYYY-MM-DD")
}

func parseOptionalID(name, v string) (*uuid.UUID, error) {
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, badRequest("%s must be a uuid", name)
	}
	return &id, nil
}

// removalNames accepts repeated fields, a JSON array, or a comma separated list.
func removalNames(form *multipart.Form) ([]string, error) {
	var names []string
	values := slices.Concat(form.Value["removeAttachments"], form.Value["removeAttachments[]"])
	for _, v := range values {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var list []string
			if err := json.Unmarshal([]byte(v), &list); err != nil {
				return nil, badRequest("invalid removeAttachments: %v", err)
			}
			names = append(names, list...)
			continue
		}
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// openFiles opens every uploaded part. The returned func closes them all.
func openFiles(headers []*multipart.FileHeader) ([]attachments.File, func(), error) {
	files := make([]attachments.File, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, badRequest("cannot read uploaded file %q", fh.Filename)
		}
		opened = append(opened, src)

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		files = append(files, attachments.File{
			OriginalName: fh.Filename,
			MimeType:     contentType,
			Size:         fh.Size,
			Content:      src,
		})
	}
	return files, closeAll, nil
}
