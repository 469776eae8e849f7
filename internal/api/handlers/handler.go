package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rohits-web03/opsdash/internal/api/services"
	"github.com/rohits-web03/opsdash/internal/attachments"
	"github.com/rohits-web03/opsdash/internal/logger"
	"github.com/rohits-web03/opsdash/internal/models"
	"github.com/rohits-web03/opsdash/internal/repositories"
	"github.com/rohits-web03/opsdash/internal/utils"
)

// errBadRequest marks malformed input detected by the handlers themselves.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// Deps is everything the handlers need. It is built once in main.
type Deps struct {
	Staff     *repositories.Repository[models.Staff]
	Projects  *repositories.Repository[models.Project]
	Contracts *repositories.Repository[models.Contract]
	Budget    *repositories.BudgetRepository
	Backups   *repositories.Repository[models.CloudBackup]
	Tasks     *services.TaskService
	Dashboard *services.DashboardService

	// MaxFileSize is the per-file upload limit, used to size multipart bodies.
	MaxFileSize int64
	Log         *logger.Logger
}

type Handler struct {
	staff     *resource[models.Staff, StaffInput]
	projects  *resource[models.Project, ProjectInput]
	contracts *resource[models.Contract, ContractInput]
	budget    *resource[models.BudgetEntry, BudgetInput]
	backups   *resource[models.CloudBackup, BackupInput]

	tasks       *services.TaskService
	dashboard   *services.DashboardService
	maxFileSize int64
	validate    *validator.Validate
	log         *logger.Logger
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.MaxFileSize <= 0 {
		d.MaxFileSize = 10 << 20
	}
	h := &Handler{
		tasks:       d.Tasks,
		dashboard:   d.Dashboard,
		maxFileSize: d.MaxFileSize,
		validate:    newValidator(),
		log:         d.Log,
	}
	h.staff = &resource[models.Staff, StaffInput]{
		h: h, name: "Staff member", repo: d.Staff,
		filters: map[string]string{"status": "status", "department": "department", "role": "role"},
		apply:   StaffInput.apply,
	}
	h.projects = &resource[models.Project, ProjectInput]{
		h: h, name: "Project", repo: d.Projects,
		filters: map[string]string{"status": "status", "managerId": "manager_id"},
		apply:   ProjectInput.apply,
		refs: func(r *http.Request, in *ProjectInput) error {
			return checkRef(r, d.Staff, in.ManagerID)
		},
	}
	h.contracts = &resource[models.Contract, ContractInput]{
		h: h, name: "Contract", repo: d.Contracts,
		filters: map[string]string{"status": "status", "projectId": "project_id"},
		apply:   ContractInput.apply,
		refs: func(r *http.Request, in *ContractInput) error {
			return checkRef(r, d.Projects, in.ProjectID)
		},
	}
	h.budget = &resource[models.BudgetEntry, BudgetInput]{
		h: h, name: "Budget entry", repo: d.Budget.Repository,
		filters: map[string]string{"type": "type", "category": "category", "projectId": "project_id"},
		apply:   BudgetInput.apply,
		refs: func(r *http.Request, in *BudgetInput) error {
			return checkRef(r, d.Projects, in.ProjectID)
		},
	}
	h.backups = &resource[models.CloudBackup, BackupInput]{
		h: h, name: "Backup", repo: d.Backups,
		filters: map[string]string{"status": "status", "provider": "provider"},
		apply:   BackupInput.apply,
	}
	return h
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return h.validate.Struct(dst)
}

// fail maps err onto a status code and writes the error envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.For(r.Context()).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	utils.JSONResponse(w, status, utils.Payload{
		Success: false,
		Message: msg,
	})
}

func classify(err error) (int, string) {
	var (
		verrs   validator.ValidationErrors
		tooBig  *http.MaxBytesError
		invalid *validator.InvalidValidationError
	)
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest, validationMessage(verrs)
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "Invalid request body"
	case errors.As(err, &tooBig):
		return http.StatusBadRequest, fmt.Sprintf("Request body too large: limit is %s", attachments.FormatSize(tooBig.Limit))
	case errors.Is(err, errBadRequest), errors.Is(err, attachments.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, attachments.ErrAttachmentNotFound):
		return http.StatusNotFound, "Attachment not found"
	case errors.Is(err, attachments.ErrFileMissing):
		return http.StatusGone, "Attachment file is no longer available on storage"
	case errors.Is(err, attachments.ErrStorageWrite):
		return http.StatusInternalServerError, "Failed to store attachment"
	case errors.Is(err, attachments.ErrStorageRead):
		return http.StatusInternalServerError, "Failed to read attachment"
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound, "Record not found"
	case errors.Is(err, repositories.ErrConflict):
		return http.StatusConflict, "Record was modified by another request, reload and retry"
	case errors.Is(err, repositories.ErrAlreadyExists):
		return http.StatusConflict, "Record already exists"
	case errors.Is(err, repositories.ErrInvalidReference):
		return http.StatusBadRequest, "Referenced record does not exist"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "gt", "gte", "lte", "max":
			parts = append(parts, fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("invalid '%s' with value '%v'", field, fe.Value()))
		}
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// listOptions reads page, limit and the allowed equality filters from the
// query string. filters maps query names to column names.
func listOptions(r *http.Request, filters map[string]string) (repositories.ListOptions, error) {
	q := r.URL.Query()
	opts := repositories.ListOptions{Filters: map[string]any{}}

	var err error
	if v := q.Get("page"); v != "" {
		if opts.Page, err = strconv.Atoi(v); err != nil {
			return opts, badRequest("page must be a number")
		}
	}
	if v := q.Get("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil {
			return opts, badRequest("limit must be a number")
		}
	}
	for param, column := range filters {
		v := q.Get(param)
		if v == "" {
			continue
		}
		if strings.HasSuffix(column, "_id") {
			id, err := uuid.Parse(v)
			if err != nil {
				return opts, badRequest("%s must be a uuid", param)
			}
			opts.Filters[column] = id
			continue
		}
		opts.Filters[column] = v
	}
	return opts.Normalized(), nil
}

func checkRef[T any](r *http.Request, repo *repositories.Repository[T], id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	ok, err := repo.Exists(r.Context(), *id)
	if err != nil {
		return err
	}
	if !ok {
		return repositories.ErrInvalidReference
	}
	return nil
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	utils.JSONResponse(w, status, utils.Payload{
		Success: true,
		Message: message,
		Data:    data,
	})
}
