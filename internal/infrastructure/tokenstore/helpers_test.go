package tokenstore

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newCookieStore() *sessions.CookieStore {
	return sessions.NewCookieStore(testKey)
}

// nextRequest builds a request carrying the cookies set on rec.
func nextRequest(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("response sets no %s cookie", name)
	return nil
}

func jwtExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(d).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

// rotatedKeyRequest carries a session cookie sealed with a key the test stores
// no longer accept.
func rotatedKeyRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	old := sessions.NewCookieStore([]byte("fedcba9876543210fedcba9876543210"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	session, err := old.Get(req, "portal_session")
	if err != nil {
		t.Fatal(err)
	}
	session.Values[tokenKey] = token
	session.Values[sidKey] = token
	if err := session.Save(req, rec); err != nil {
		t.Fatal(err)
	}

	next := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	return next
}
