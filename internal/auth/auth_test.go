package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/models"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Personnel{}, &models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func requestWithSession(t *testing.T, userID uint) *http.Request {
	rr := httptest.NewRecorder()
	CreateSession(rr, userID)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	req := requestWithSession(t, 42)
	uid, ok := ParseSession(req)
	if !ok || uid != 42 {
		t.Fatalf("ParseSession = (%d, %v), attendu (42, true)", uid, ok)
	}
}

func TestSessionRejectsTampering(t *testing.T) {
	rr := httptest.NewRecorder()
	CreateSession(rr, 42)
	cookie := rr.Result().Cookies()[0]
	_, sig, _ := strings.Cut(cookie.Value, ".")

	// même signature, identifiant modifié
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: "43." + sig})
	if _, ok := ParseSession(req); ok {
		t.Fatalf("forged uid must be rejected")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: "sanspoint"})
	if _, ok := ParseSession(req); ok {
		t.Fatalf("malformed cookie must be rejected")
	}
}

func TestGuardRequiresExistingAccount(t *testing.T) {
	db := setupTestDB(t, t.Name())
	p := models.Personnel{Email: "prof@lfs.example", Name: "Durand", Firstname: "Anne", Department: "Langues"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed personnel: %v", err)
	}
	u := models.User{PID: p.ID, Password: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	guard := &Guard{DB: db}
	var hits int
	protected := Middleware(guard.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	})))

	// sans session
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized || hits != 0 {
		t.Fatalf("anonymous: status %d, hits %d", rr.Code, hits)
	}

	// session valide
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, requestWithSession(t, u.ID))
	if rr.Code != http.StatusOK || hits != 1 {
		t.Fatalf("valid session: status %d, hits %d", rr.Code, hits)
	}

	// session pointant vers un compte supprimé
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, requestWithSession(t, u.ID+100))
	if rr.Code != http.StatusUnauthorized || hits != 1 {
		t.Fatalf("stale session: status %d, hits %d", rr.Code, hits)
	}
}

func TestCurrentActor(t *testing.T) {
	db := setupTestDB(t, t.Name())
	p := models.Personnel{Email: "gestion@lfs.example", Name: "Gestionnaire", Firstname: "La", Department: "Administration", Role: "gestion"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed personnel: %v", err)
	}
	u := models.User{PID: p.ID, Password: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), u.ID))
	user, personnel, ok := CurrentActor(db, req)
	if !ok {
		t.Fatalf("actor must resolve")
	}
	if user.ID != u.ID || personnel.Email != p.Email || personnel.Role != "gestion" {
		t.Fatalf("actor = (%d, %s, %s)", user.ID, personnel.Email, personnel.Role)
	}

	if _, _, ok := CurrentActor(db, httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatalf("anonymous request must not resolve")
	}
}
