package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
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

func postForm(t *testing.T, h http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestSignupRequiresDirectoryEntry(t *testing.T) {
	db := setupTestDB(t, t.Name())
	h := NewAuthHandler(db)

	rr := postForm(t, h.signup, "/signup", url.Values{
		"email":    {"inconnu@lfs.example"},
		"password": {"motdepasse"},
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unknown email: status %d, want 403", rr.Code)
	}
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Fatalf("no account must be created")
	}
}

func TestSignupCreatesAccountOnce(t *testing.T) {
	db := setupTestDB(t, t.Name())
	p := models.Personnel{Email: "prof@lfs.example", Name: "Durand", Firstname: "Anne", Department: "Langues"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := NewAuthHandler(db)

	form := url.Values{"email": {"Prof@LFS.example"}, "password": {"motdepasse"}}
	rr := postForm(t, h.signup, "/signup", form)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: status %d, body %s", rr.Code, rr.Body.String())
	}
	var user models.User
	if err := db.Where("pid = ?", p.ID).First(&user).Error; err != nil {
		t.Fatalf("created user: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("motdepasse")) != nil {
		t.Fatalf("password must be hashed and verifiable")
	}

	// deuxième inscription pour le même personnel
	rr = postForm(t, h.signup, "/signup", form)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: status %d, want 409", rr.Code)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	db := setupTestDB(t, t.Name())
	h := NewAuthHandler(db)
	rr := postForm(t, h.signup, "/signup", url.Values{
		"email":    {"prof@lfs.example"},
		"password": {"court"},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("short password: status %d, want 400", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t, t.Name())
	p := models.Personnel{Email: "prof@lfs.example", Name: "Durand", Firstname: "Anne", Department: "Langues", Role: "gestion"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte("motdepasse"), bcrypt.DefaultCost)
	if err := db.Create(&models.User{PID: p.ID, Password: string(hash)}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	h := NewAuthHandler(db)

	rr := postForm(t, h.login, "/login", url.Values{
		"email":    {"prof@lfs.example"},
		"password": {"motdepasse"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rr.Code, rr.Body.String())
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Fatalf("login must set a session cookie")
	}

	rr = postForm(t, h.login, "/login", url.Values{
		"email":    {"prof@lfs.example"},
		"password": {"mauvais"},
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d, want 401", rr.Code)
	}

	rr = postForm(t, h.login, "/login", url.Values{
		"email":    {"sanscompte@lfs.example"},
		"password": {"motdepasse"},
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no account: status %d, want 401", rr.Code)
	}
}
