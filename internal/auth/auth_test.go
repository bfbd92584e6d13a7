package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ntes/internal/apperr"
	"ntes/internal/docstore"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	store, err := docstore.Open(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	opts.BcryptCost = bcrypt.MinCost
	if opts.Secret == "" {
		opts.Secret = "test-secret"
	}
	svc, err := New(store, opts)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestSignInErrors(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		code     apperr.Code
		message  string
	}{
		{"unknown user", "nobody@ntes.com", "x", apperr.CodeAuthUserNotFound, "No admin account found. Please create an account first."},
		{"malformed email", "not-an-email", "x", apperr.CodeAuthInvalidEmail, "Invalid email address."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignIn(ctx, tt.email, tt.password)
			if apperr.CodeOf(err) != tt.code {
				t.Fatalf("code = %s, want %s (%v)", apperr.CodeOf(err), tt.code, err)
			}
			if got := apperr.UserMessage(err); got != tt.message {
				t.Fatalf("message = %q, want %q", got, tt.message)
			}
		})
	}

	if _, err := svc.CreateUser(ctx, "owner@ntes.com", "secret1"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := svc.SignIn(ctx, "owner@ntes.com", "wrong")
	if got := apperr.UserMessage(err); got != "Incorrect password. Please try again." {
		t.Fatalf("message = %q", got)
	}
}

func TestSignInAndVerify(t *testing.T) {
	svc := newTestService(t, Options{SessionTTL: time.Hour})
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, " Owner@NTES.com ", "secret1"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := svc.SignIn(ctx, "owner@ntes.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	sess, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sess.Email != "owner@ntes.com" || sess.UserID == "" {
		t.Fatalf("unexpected session %+v", sess)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Verify(token); !apperr.HasCode(err, apperr.CodeAuthSessionInvalid) {
		t.Fatalf("expected expired session, got %v", err)
	}
	if _, err := svc.Verify("garbage"); !apperr.HasCode(err, apperr.CodeAuthSessionInvalid) {
		t.Fatalf("expected invalid session, got %v", err)
	}
}

func TestDemoSignInProvisions(t *testing.T) {
	svc := newTestService(t, Options{DemoEnabled: true, DemoEmail: "admin@ntes.com", DemoPassword: "admin123"})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		token, err := svc.DemoSignIn(ctx)
		if err != nil {
			t.Fatalf("demo sign in #%d: %v", i, err)
		}
		if _, err := svc.Verify(token); err != nil {
			t.Fatalf("verify demo token: %v", err)
		}
	}
}

func TestDemoSignInDisabled(t *testing.T) {
	svc := newTestService(t, Options{})
	if _, err := svc.DemoSignIn(context.Background()); err == nil {
		t.Fatal("expected error when demo login is disabled")
	}
}

func TestNilServiceNotConfigured(t *testing.T) {
	var svc *Service
	_, err := svc.SignIn(context.Background(), "a@b.co", "x")
	if got := apperr.UserMessage(err); got != "Backend not configured. Please set up the backend first." {
		t.Fatalf("message = %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()
	if _, err := svc.CreateUser(ctx, "owner@ntes.com", "secret1"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := svc.SignIn(ctx, "owner@ntes.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	protected := svc.Middleware("/admin/login", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFrom(r.Context())
		_, _ = w.Write([]byte(sess.Email))
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/gallery", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/admin/login?next=") {
		t.Fatalf("expected redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/api/uploads/x", nil)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/gallery", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "owner@ntes.com" {
		t.Fatalf("authorized request: %d %q", rec.Code, rec.Body.String())
	}
}

func TestWriteCookieAttributes(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	WriteCookie(rec, req, " tok ")
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d", len(cookies))
	}
	c := cookies[0]
	if c.Value != "tok" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie %+v", c)
	}
}
