package api

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/rohits-web03/opsdash/docs"
	"github.com/rohits-web03/opsdash/internal/api/handlers"
	"github.com/rohits-web03/opsdash/internal/api/middleware"
	"github.com/rohits-web03/opsdash/internal/logger"
	"github.com/rohits-web03/opsdash/internal/utils"
	"github.com/rs/cors"
)

type RouterOptions struct {
	Cors cors.Options
	Log  *logger.Logger
	// Health is called by /health; nil means always healthy.
	Health func(context.Context) error
}

func SetupRouter(h *handlers.Handler, opts RouterOptions) http.Handler {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	mainMux := http.NewServeMux()
	c := cors.New(opts.Cors)

	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, "database unavailable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	api := http.NewServeMux()

	api.HandleFunc("GET /staff", h.ListStaff)
	api.HandleFunc("POST /staff", h.CreateStaff)
	api.HandleFunc("GET /staff/{id}", h.GetStaff)
	api.HandleFunc("PUT /staff/{id}", h.UpdateStaff)
	api.HandleFunc("DELETE /staff/{id}", h.DeleteStaff)

	api.HandleFunc("GET /projects", h.ListProjects)
	api.HandleFunc("POST /projects", h.CreateProject)
	api.HandleFunc("GET /projects/{id}", h.GetProject)
	api.HandleFunc("PUT /projects/{id}", h.UpdateProject)
	api.HandleFunc("DELETE /projects/{id}", h.DeleteProject)

	api.HandleFunc("GET /contracts", h.ListContracts)
	api.HandleFunc("POST /contracts", h.CreateContract)
	api.HandleFunc("GET /contracts/{id}", h.GetContract)
	api.HandleFunc("PUT /contracts/{id}", h.UpdateContract)
	api.HandleFunc("DELETE /contracts/{id}", h.DeleteContract)

	api.HandleFunc("GET /budget", h.ListBudgetEntries)
	api.HandleFunc("POST /budget", h.CreateBudgetEntry)
	api.HandleFunc("GET /budget/{id}", h.GetBudgetEntry)
	api.HandleFunc("PUT /budget/{id}", h.UpdateBudgetEntry)
	api.HandleFunc("DELETE /budget/{id}", h.DeleteBudgetEntry)

	api.HandleFunc("GET /backups", h.ListBackups)
	api.HandleFunc("POST /backups", h.CreateBackup)
	api.HandleFunc("GET /backups/{id}", h.GetBackup)
	api.HandleFunc("PUT /backups/{id}", h.UpdateBackup)
	api.HandleFunc("DELETE /backups/{id}", h.DeleteBackup)

	api.HandleFunc("GET /tasks", h.ListTasks)
	api.HandleFunc("POST /tasks", byContentType(h.CreateTaskJSON, h.CreateTaskMultipart))
	api.HandleFunc("GET /tasks/{id}", h.GetTask)
	api.HandleFunc("PUT /tasks/{id}", byContentType(h.UpdateTaskJSON, h.UpdateTaskMultipart))
	api.HandleFunc("DELETE /tasks/{id}", h.DeleteTask)
	api.HandleFunc("POST /tasks/{id}/attachments", h.AddAttachments)
	api.HandleFunc("GET /tasks/{id}/attachments/{filename}", h.DownloadAttachment)
	api.HandleFunc("DELETE /tasks/{id}/attachments/{filename}", h.DeleteAttachment)

	api.HandleFunc("GET /dashboard", h.GetDashboard)

	mainMux.Handle("/api/v1/", http.StripPrefix("/api/v1", api))

	opts.Log.Info("Router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(opts.Log)(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// byContentType sends multipart bodies to form and everything else that is
// JSON (or has no content type) to json.
func byContentType(json, form http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "multipart/form-data":
			form(w, r)
		case "application/json", "":
			json(w, r)
		default:
			utils.JSONResponse(w, http.StatusUnsupportedMediaType, utils.Payload{
				Success: false,
				Message: "Content-Type must be application/json or multipart/form-data",
			})
		}
	}
}
