package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newProvider(t *testing.T) *JWTProvider {
	t.Helper()
	p, err := NewJWTProvider(testSecret, "rentals")
	if err != nil {
		t.Fatalf("NewJWTProvider() error = %v", err)
	}
	return p
}

func TestNewJWTProvider_ShortSecret(t *testing.T) {
	if _, err := NewJWTProvider("short", ""); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestJWTProvider_Resolve(t *testing.T) {
	p := newProvider(t)
	token, err := p.Issue(model.User{ID: "user-1", Name: " Priya  S ", Email: "Priya@Example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	other, _ := NewJWTProvider("ffffffffffffffffffffffffffffffff", "rentals")
	forged, _ := other.Issue(model.User{ID: "user-1"}, time.Hour)
	expired, _ := p.Issue(model.User{ID: "user-1"}, -time.Hour)
	foreign, _ := NewJWTProvider(testSecret, "someone-else")
	wrongIssuer, _ := foreign.Issue(model.User{ID: "user-1"}, time.Hour)
	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name     string
		header   string
		wantUser *model.User
		wantErr  bool
	}{
		{name: "no header", header: ""},
		{name: "valid token", header: "Bearer " + token, wantUser: &model.User{ID: "user-1", Name: "Priya S", Email: "priya@example.com"}},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "empty bearer", header: "Bearer ", wantErr: true},
		{name: "garbage", header: "Bearer not.a.token", wantErr: true},
		{name: "wrong secret", header: "Bearer " + forged, wantErr: true},
		{name: "expired", header: "Bearer " + expired, wantErr: true},
		{name: "wrong issuer", header: "Bearer " + wrongIssuer, wantErr: true},
		{name: "alg none", header: "Bearer " + noneToken, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			user, err := p.Resolve(r)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Fatalf("expected ErrInvalidCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantUser == nil {
				if user != nil {
					t.Fatalf("expected anonymous, got %+v", user)
				}
				return
			}
			if user == nil || *user != *tt.wantUser {
				t.Errorf("user = %+v, want %+v", user, tt.wantUser)
			}
		})
	}
}

func TestHeaderProvider(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	user, err := NewHeaderProvider().Resolve(r)
	if err != nil || user != nil {
		t.Fatalf("expected anonymous, got %+v, %v", user, err)
	}

	r.Header.Set(HeaderUserID, " user-7 ")
	r.Header.Set(HeaderUserName, "Arjun")
	r.Header.Set(HeaderUserEmail, "ARJUN@example.com")
	user, err = NewHeaderProvider().Resolve(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := model.User{ID: "user-7", Name: "Arjun", Email: "arjun@example.com"}
	if user == nil || *user != want {
		t.Errorf("user = %+v, want %+v", user, want)
	}
}

func TestChain(t *testing.T) {
	p := newProvider(t)
	token, _ := p.Issue(model.User{ID: "from-token"}, time.Hour)
	chain := Chain{p, NewHeaderProvider()}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderUserID, "from-header")
	user, err := chain.Resolve(r)
	if err != nil || user == nil || user.ID != "from-header" {
		t.Errorf("fallback to header failed: %+v, %v", user, err)
	}

	r.Header.Set("Authorization", "Bearer "+token)
	user, err = chain.Resolve(r)
	if err != nil || user == nil || user.ID != "from-token" {
		t.Errorf("token must win: %+v, %v", user, err)
	}

	r.Header.Set("Authorization", "Bearer broken")
	if _, err := chain.Resolve(r); err == nil {
		t.Error("invalid token must not fall through to headers")
	}
}

func TestMiddleware(t *testing.T) {
	var seen *model.User
	handler := Middleware(NewHeaderProvider(), logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := CurrentUser(r.Context()); ok {
			seen = &user
		}
		if UserID(r) != "" && !IsAuthenticated(r.Context()) {
			t.Error("UserID and IsAuthenticated disagree")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || seen != nil {
		t.Fatalf("anonymous request: status %d, user %+v", rec.Code, seen)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderUserID, "user-1")
	handler.ServeHTTP(httptest.NewRecorder(), r)
	if seen == nil || seen.ID != "user-1" {
		t.Fatalf("expected user-1 in context, got %+v", seen)
	}
}

func TestMiddleware_RejectsBadToken(t *testing.T) {
	called := false
	handler := Middleware(newProvider(t), logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer broken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if called {
		t.Error("handler must not run for bad credentials")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireUser(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := RequireUser(r.Context()); err == nil {
		t.Error("expected unauthorized error")
	}

	ctx := WithUser(r.Context(), model.User{ID: "u"})
	user, err := RequireUser(ctx)
	if err != nil || user.ID != "u" {
		t.Errorf("RequireUser() = %+v, %v", user, err)
	}
}
