package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/auth"
	"github.com/nxpat/projets-lfs/internal/handlers"
	"github.com/nxpat/projets-lfs/internal/httpx"
	"github.com/nxpat/projets-lfs/internal/middleware"
	"github.com/nxpat/projets-lfs/internal/notify"
	"github.com/nxpat/projets-lfs/internal/schoolyear"
	"github.com/nxpat/projets-lfs/internal/workflow"
)

// Deps carries the shared collaborators wired in main.
type Deps struct {
	DB         *gorm.DB
	SY         *schoolyear.Resolver
	Workflow   *workflow.Service
	Queue      *notify.Queue
	Dispatcher *notify.Dispatcher
	Log        zerolog.Logger
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	guard := &auth.Guard{DB: d.DB}

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth endpoints
	authHandler := handlers.NewAuthHandler(d.DB)
	authHandler.Register(mux)

	secured := func(h http.HandlerFunc) http.Handler {
		return guard.RequireAuth(h)
	}

	// Projects
	ph := handlers.NewProjectHandler(d.DB, d.Workflow)
	mux.Handle("GET /projects", secured(ph.List))
	mux.Handle("POST /projects", secured(ph.Create))
	mux.Handle("GET /projects/{id}", secured(ph.Get))
	mux.Handle("POST /projects/{id}", secured(ph.Update))
	mux.Handle("POST /projects/{id}/validate", secured(ph.Validate))
	mux.Handle("POST /projects/{id}/reject", secured(ph.Reject))
	mux.Handle("POST /projects/{id}/devalidate", secured(ph.Devalidate))
	mux.Handle("POST /projects/{id}/delete", secured(ph.Delete))
	mux.Handle("POST /projects/{id}/duplicate", secured(ph.Duplicate))
	mux.Handle("/projects/{id}/comments", secured(ph.Comments))
	mux.Handle("GET /projects/{id}/history", secured(ph.History))

	// Dashboard, school year, queued actions
	dh := handlers.NewDashboardHandler(d.DB, d.Workflow, d.SY, d.Queue, d.Dispatcher)
	mux.Handle("GET /dashboard", secured(dh.Get))
	mux.Handle("POST /dashboard/lock", secured(dh.SetLock))
	mux.Handle("POST /dashboard/schoolyear", secured(dh.SetSchoolYear))
	mux.Handle("POST /actions/{id}/run", secured(dh.RunAction))

	// Reporting
	datah := handlers.NewDataHandler(d.DB, d.SY)
	mux.Handle("GET /data", secured(datah.Analysis))
	mux.Handle("GET /data/budget", secured(datah.Budget))
	mux.Handle("GET /data/export", secured(datah.Export))
	mux.Handle("GET /choices", secured(datah.Choices))

	// Profile
	proh := handlers.NewProfileHandler(d.DB)
	mux.Handle("GET /profile", secured(proh.Get))
	mux.Handle("POST /profile/preferences", secured(proh.SetPreferences))
	mux.Handle("POST /profile/password", secured(proh.ChangePassword))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"app": "Projets LFS"})
	})

	var handler http.Handler = mux
	handler = auth.Middleware(handler)
	handler = middleware.Recover(d.Log)(handler)
	handler = middleware.Logging(d.Log)(handler)
	return handler
}
