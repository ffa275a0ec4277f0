package handlers

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/auth"
	"github.com/nxpat/projets-lfs/internal/httpx"
	"github.com/nxpat/projets-lfs/internal/models"
	"github.com/nxpat/projets-lfs/internal/workflow"
)

type AuthHandler struct{ DB *gorm.DB }

func NewAuthHandler(db *gorm.DB) *AuthHandler { return &AuthHandler{DB: db} }

func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/signup", h.signup)
	mux.HandleFunc("/login", h.login)
	mux.HandleFunc("/logout", h.logout)
}

// currentActor resolves the session user into the workflow actor.
func currentActor(db *gorm.DB, r *http.Request) (workflow.Actor, bool) {
	user, personnel, ok := auth.CurrentActor(db, r)
	if !ok {
		return workflow.Actor{}, false
	}
	return workflow.Actor{User: user, Personnel: personnel}, true
}

// signup creates an account for a staff member already present in the
// directory. Unknown emails are rejected: registration is not open.
func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	pass := r.FormValue("password")
	if email == "" || pass == "" {
		httpx.JSONError(w, http.StatusBadRequest, "email_and_password_required", nil)
		return
	}
	if len(pass) < 8 {
		httpx.JSONError(w, http.StatusBadRequest, "password_too_short", nil)
		return
	}
	var personnel models.Personnel
	if err := h.DB.Where("email = ?", email).First(&personnel).Error; err != nil {
		httpx.JSONError(w, http.StatusForbidden, "email_not_in_directory", nil)
		return
	}
	var count int64
	if err := h.DB.Model(&models.User{}).Where("pid = ?", personnel.ID).Count(&count).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "database_error", nil)
		return
	}
	if count > 0 {
		httpx.JSONError(w, http.StatusConflict, "account_already_exists", nil)
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	user := models.User{
		PID:            personnel.ID,
		Password:       string(hash),
		DateRegistered: time.Now(),
	}
	if err := h.DB.Create(&user).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "could_not_create_user", nil)
		return
	}
	auth.CreateSession(w, user.ID)
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":    user.ID,
		"email": personnel.Email,
		"name":  personnel.FullName(),
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	pass := r.FormValue("password")
	if email == "" || pass == "" {
		httpx.JSONError(w, http.StatusBadRequest, "email_and_password_required", nil)
		return
	}
	var personnel models.Personnel
	if err := h.DB.Preload("User").Where("email = ?", email).First(&personnel).Error; err != nil || personnel.User == nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(personnel.User.Password), []byte(pass)) != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	auth.CreateSession(w, personnel.User.ID)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":   personnel.User.ID,
		"name": personnel.FullName(),
		"role": personnel.Role,
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	auth.ClearSession(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
