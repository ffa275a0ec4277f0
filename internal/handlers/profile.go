package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/httpx"
	"github.com/nxpat/projets-lfs/internal/models"
)

type ProfileHandler struct {
	DB *gorm.DB
}

func NewProfileHandler(db *gorm.DB) *ProfileHandler { return &ProfileHandler{DB: db} }

// notification opt-in tokens accepted in the preference string
var knownPreferences = map[string]bool{
	"email=ready-1":   true,
	"email=ready":     true,
	"email=validated": true,
	"email=default-c": true,
}

// Get: GET /profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"email":           actor.Personnel.Email,
		"name":            actor.Personnel.FullName(),
		"department":      actor.Personnel.Department,
		"role":            actor.Personnel.Role,
		"date_registered": actor.User.DateRegistered,
		"preferences":     splitPreferences(actor.User.Preferences),
		"new_messages":    actor.User.NewMessageIDs(),
	})
}

// SetPreferences: POST /profile/preferences {"preferences": [...]} – the
// tokens are validated against the known set before being stored.
func (h *ProfileHandler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var body struct {
		Preferences []string `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	var kept []string
	for _, token := range body.Preferences {
		token = strings.TrimSpace(token)
		if !knownPreferences[token] {
			httpx.JSONError(w, http.StatusBadRequest, "unknown_preference", map[string]string{"token": token})
			return
		}
		kept = append(kept, token)
	}
	if err := h.DB.Model(&models.User{}).Where("id = ?", actor.User.ID).
		Update("preferences", strings.Join(kept, ",")).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"preferences": kept})
}

// ChangePassword: POST /profile/password
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var body struct {
		Current string `json:"current"`
		New     string `json:"new"`
		Confirm string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(actor.User.Password), []byte(body.Current)) != nil {
		httpx.JSONError(w, http.StatusForbidden, "current_password_invalid", nil)
		return
	}
	if len(body.New) < 8 || body.New != body.Confirm {
		httpx.JSONError(w, http.StatusBadRequest, "password_mismatch_or_too_short", nil)
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(body.New), bcrypt.DefaultCost)
	if err := h.DB.Model(&models.User{}).Where("id = ?", actor.User.ID).
		Update("password", string(hash)).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

func splitPreferences(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
