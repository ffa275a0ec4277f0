package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/httpx"
	"github.com/nxpat/projets-lfs/internal/models"
)

// Sessions signées par cookie : "<uid>.<hmac-sha256>", clé SESSION_SECRET.

type ctxKey struct{}

const (
	cookieName = "plfs_session"
	sessionTTL = 14 * 24 * time.Hour
)

func secret() []byte {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("devsessionsecret")
}

func sign(uid string) string {
	mac := hmac.New(sha256.New, secret())
	mac.Write([]byte(uid))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets the signed session cookie for the account.
func CreateSession(w http.ResponseWriter, userID uint) {
	uid := strconv.FormatUint(uint64(userID), 10)
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    uid + "." + sign(uid),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
}

// ClearSession expires the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}

// ParseSession validates the cookie signature and returns the user id.
func ParseSession(r *http.Request) (uint, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	uid, sig, found := strings.Cut(c.Value, ".")
	if !found || !hmac.Equal([]byte(sig), []byte(sign(uid))) {
		return 0, false
	}
	id, err := strconv.ParseUint(uid, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// WithUserID stores the session user id in the context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext extracts the session user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(ctxKey{}).(uint)
	return id, ok
}

// Middleware attaches the session user id to the request context if a valid
// cookie is present. Route guards decide what anonymous requests may do.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := ParseSession(r); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentActor resolves the session into the account and its staff directory
// entry. The Personnel row is authoritative for identity and role.
func CurrentActor(db *gorm.DB, r *http.Request) (models.User, models.Personnel, bool) {
	uid, ok := UserIDFromContext(r.Context())
	if !ok || uid == 0 {
		return models.User{}, models.Personnel{}, false
	}
	var user models.User
	if err := db.First(&user, uid).Error; err != nil {
		return models.User{}, models.Personnel{}, false
	}
	var personnel models.Personnel
	if err := db.First(&personnel, user.PID).Error; err != nil {
		return models.User{}, models.Personnel{}, false
	}
	return user, personnel, true
}

// Guard protects the API routes. A session whose account no longer exists is
// cleared and treated as anonymous.
type Guard struct{ DB *gorm.DB }

func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok || uid == 0 {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		var count int64
		err := g.DB.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error
		if err != nil || count == 0 {
			ClearSession(w)
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
