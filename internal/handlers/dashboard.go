package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/divisions"
	"github.com/nxpat/projets-lfs/internal/httpx"
	"github.com/nxpat/projets-lfs/internal/models"
	"github.com/nxpat/projets-lfs/internal/notify"
	"github.com/nxpat/projets-lfs/internal/schoolyear"
	"github.com/nxpat/projets-lfs/internal/workflow"
)

// DashboardHandler covers the management page: the global lock, the
// school-year settings and the deferred-action queue.
type DashboardHandler struct {
	DB         *gorm.DB
	Svc        *workflow.Service
	SY         *schoolyear.Resolver
	Queue      *notify.Queue
	Dispatcher *notify.Dispatcher
}

func NewDashboardHandler(db *gorm.DB, svc *workflow.Service, sy *schoolyear.Resolver, queue *notify.Queue, dispatcher *notify.Dispatcher) *DashboardHandler {
	return &DashboardHandler{DB: db, Svc: svc, SY: sy, Queue: queue, Dispatcher: dispatcher}
}

// Get: GET /dashboard – lock state, current school year, pending action.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	dash, err := h.Svc.Dashboard()
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	start, end, label, err := h.SY.Resolve(nil, nil)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	resp := map[string]any{
		"lock":         dash.Lock,
		"lock_message": dash.LockMessage,
		"school_year": map[string]any{
			"label":     label,
			"start":     start.Format("2006-01-02"),
			"end":       end.Format("2006-01-02"),
			"divisions": h.SY.Divisions(label),
		},
		"new_messages": actor.User.NewMessageIDs(),
	}
	if h.Queue != nil {
		if action, err := h.Queue.Pending(actor.User.ID); err == nil && action != nil {
			resp["pending_action"] = map[string]any{
				"id":         action.ID,
				"type":       action.ActionType,
				"parameters": action.Parameters,
				"queued_at":  action.Timestamp,
			}
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// SetLock: POST /dashboard/lock {"open": bool}
func (h *DashboardHandler) SetLock(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var body struct {
		Open bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := h.Svc.SetLock(actor, body.Open); err != nil {
		writeWorkflowError(w, err)
		return
	}
	dash, err := h.Svc.Dashboard()
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lock": dash.Lock, "lock_message": dash.LockMessage})
}

// SetSchoolYear: POST /dashboard/schoolyear – management adjusts the year
// window and the division list. Dates outside today are silently replaced by
// the computed default, per the resolver contract.
func (h *DashboardHandler) SetSchoolYear(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if !actor.IsManagement() {
		httpx.JSONError(w, http.StatusForbidden, workflow.ErrForbidden.Error(), nil)
		return
	}
	var body struct {
		Start     string   `json:"start"`
		End       string   `json:"end"`
		Divisions []string `json:"divisions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	var requestedStart, requestedEnd *time.Time
	if body.Start != "" && body.End != "" {
		s, err1 := time.Parse("2006-01-02", body.Start)
		e, err2 := time.Parse("2006-01-02", body.End)
		if err1 != nil || err2 != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_date", nil)
			return
		}
		requestedStart, requestedEnd = &s, &e
	}
	start, end, label, err := h.SY.Resolve(requestedStart, requestedEnd)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}

	if len(body.Divisions) > 0 {
		all := divisions.All()
		canon := make([]string, 0, len(body.Divisions))
		for _, raw := range body.Divisions {
			c := divisions.Valid(raw, all)
			if c == "" {
				httpx.JSONError(w, http.StatusBadRequest, "unknown_division", map[string]string{"division": raw})
				return
			}
			canon = append(canon, c)
		}
		divisions.Sort(canon)
		if err := h.DB.Model(&models.SchoolYear{}).Where("sy = ?", label).
			Update("divisions", strings.Join(canon, ",")).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
			return
		}
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"label":     label,
		"start":     start.Format("2006-01-02"),
		"end":       end.Format("2006-01-02"),
		"divisions": h.SY.Divisions(label),
	})
}

// RunAction: POST /actions/{id}/run – consume one queued notification.
func (h *DashboardHandler) RunAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if h.Queue == nil || h.Dispatcher == nil {
		httpx.JSON(w, http.StatusOK, map[string]string{"warning": "Messagerie non connectée : aucune notification envoyée par e-mail."})
		return
	}
	warning, err := h.Queue.Consume(h.Dispatcher, id, actor.User.ID)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	resp := map[string]string{"status": "done"}
	if warning != "" {
		resp["status"] = "failed"
		resp["warning"] = warning
	}
	httpx.JSON(w, http.StatusOK, resp)
}
