package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
	"github.com/typeapproval/portal/internal/infrastructure/backend/backendtest"
	"github.com/typeapproval/portal/internal/infrastructure/tokenstore"
)

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, Timeout: 2 * time.Second}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func signedIn(t *testing.T, c *Client, token string) *Client {
	t.Helper()
	store := tokenstore.NewMemory()
	if err := store.Save(context.Background(), token); err != nil {
		t.Fatal(err)
	}
	return c.WithTokens(store)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:3000", "://nope"} {
		if _, err := New(Config{BaseURL: raw}, nil, zerolog.Nop()); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestClient_AttachesBearerCredential(t *testing.T) {
	var got []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("Authorization"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	if _, err := c.ListUsers(context.Background()); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if _, err := signedIn(t, c, "abc").ListUsers(context.Background()); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}

	if len(got) != 2 || got[0] != "" || got[1] != "Bearer abc" {
		t.Fatalf("Authorization headers = %q", got)
	}
}

func TestClient_SignIn(t *testing.T) {
	be := backendtest.New(t)
	be.AddUser("expert@example.com", "secret1", domain.RoleExpert)
	c := newClient(t, be.URL)

	token, err := c.SignIn(context.Background(), "expert@example.com", "secret1")
	if err != nil || token == "" {
		t.Fatalf("SignIn = %q, %v", token, err)
	}
	if _, err := c.SignIn(context.Background(), "expert@example.com", "wrong"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("wrong password: expected ErrUnauthenticated, got %v", err)
	}
}

func TestClient_SignUp(t *testing.T) {
	be := backendtest.New(t)
	be.AddUser("taken@example.com", "secret1")
	c := newClient(t, be.URL)

	in := ports.SignUpInput{FirstName: "Anna", SecondName: "Ivanova", Email: "anna@example.com", Password: "secret1"}
	if err := c.SignUp(context.Background(), in); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	in.Email = "taken@example.com"
	if err := c.SignUp(context.Background(), in); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("duplicate: expected ErrUserExists, got %v", err)
	}

	in.Email, in.Password = "short@example.com", "123"
	err := c.SignUp(context.Background(), in)
	var be400 *domain.BackendError
	if !errors.As(err, &be400) || be400.Status != http.StatusBadRequest {
		t.Fatalf("short password: expected 400 BackendError, got %v", err)
	}
	if be400.Message != "password must be longer than or equal to 6 characters" {
		t.Fatalf("message not surfaced verbatim: %q", be400.Message)
	}
}

func TestClient_Profile(t *testing.T) {
	for _, asObjects := range []bool{false, true} {
		be := backendtest.New(t)
		be.RolesAsObjects = asObjects
		u := be.AddUser("director@example.com", "secret1", domain.RoleDirector, domain.RoleExpert)
		c := signedIn(t, newClient(t, be.URL), be.TokenFor(u.ID, time.Hour))

		got, err := c.Profile(context.Background())
		if err != nil {
			t.Fatalf("asObjects=%v: Profile: %v", asObjects, err)
		}
		if got.ID != u.ID || !got.Roles.Contains(domain.RoleDirector) || !got.Roles.Contains(domain.RoleExpert) {
			t.Fatalf("asObjects=%v: unexpected profile %+v", asObjects, got)
		}
	}
}

func TestClient_Profile_NoCredential(t *testing.T) {
	be := backendtest.New(t)
	c := newClient(t, be.URL)

	if _, err := c.Profile(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("unbound client: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := c.WithTokens(tokenstore.NewMemory()).Profile(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("empty store: expected ErrUnauthenticated, got %v", err)
	}
	if be.ProfileCalls() != 0 {
		t.Fatalf("no request expected without a credential, got %d", be.ProfileCalls())
	}
}

func TestClient_Profile_ExpiredCredential(t *testing.T) {
	be := backendtest.New(t)
	u := be.AddUser("a@example.com", "secret1", domain.RoleExpert)
	c := signedIn(t, newClient(t, be.URL), be.TokenFor(u.ID, -time.Minute))

	if _, err := c.Profile(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestClient_Profile_CoalescesConcurrentFetches(t *testing.T) {
	be := backendtest.New(t)
	be.ProfileGate = make(chan struct{})
	u := be.AddUser("a@example.com", "secret1", domain.RoleExpert)
	c := signedIn(t, newClient(t, be.URL), be.TokenFor(u.ID, time.Hour))

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Profile(context.Background())
			errs <- err
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for be.ProfileCalls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	close(be.ProfileGate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Profile: %v", err)
		}
	}
	if got := be.ProfileCalls(); got != 1 {
		t.Fatalf("expected one backend fetch, got %d", got)
	}
}

func TestClient_UserDirectory(t *testing.T) {
	be := backendtest.New(t)
	dir := be.AddUser("director@example.com", "secret1", domain.RoleDirector)
	target := be.AddUser("new@example.com", "secret1", domain.RoleEmpty)
	ctx := context.Background()

	c := signedIn(t, newClient(t, be.URL), be.TokenFor(dir.ID, time.Hour))

	users, err := c.ListUsers(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("ListUsers = %v, %v", users, err)
	}

	updated, err := c.SetUserRoles(ctx, target.ID, []domain.Role{domain.RoleExpert, domain.RoleAccountant})
	if err != nil {
		t.Fatalf("SetUserRoles: %v", err)
	}
	if updated.ID != target.ID || !updated.Roles.Contains(domain.RoleAccountant) || updated.Roles.Contains(domain.RoleEmpty) {
		t.Fatalf("unexpected user after role change: %+v", updated)
	}

	if _, err := c.GetUser(ctx, 999); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestClient_UserDirectory_Forbidden(t *testing.T) {
	be := backendtest.New(t)
	u := be.AddUser("expert@example.com", "secret1", domain.RoleExpert)
	c := signedIn(t, newClient(t, be.URL), be.TokenFor(u.ID, time.Hour))

	if _, err := c.ListUsers(context.Background()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestClient_BackendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	c := newClient(t, srv.URL)

	if _, err := c.SignIn(context.Background(), "a@example.com", "pw"); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("5xx: expected ErrBackendUnavailable, got %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("Ping on 5xx: expected ErrBackendUnavailable, got %v", err)
	}

	srv.Close()
	if _, err := c.SignIn(context.Background(), "a@example.com", "pw"); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("closed server: expected ErrBackendUnavailable, got %v", err)
	}
}

func TestClient_Ping(t *testing.T) {
	be := backendtest.New(t)
	if err := newClient(t, be.URL).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string", `{"message":"email must be an email"}`, "email must be an email"},
		{"list", `{"message":["a","b"]}`, "a; b"},
		{"error field", `{"error":"Bad Request"}`, "Bad Request"},
		{"plain text", `invalid input`, "invalid input"},
		{"empty", ``, "Unprocessable Entity"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := errorMessage(http.StatusUnprocessableEntity, []byte(tc.body)); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWithTokens_KeepsBaseClientUnbound(t *testing.T) {
	c := newClient(t, "http://backend.local")
	_ = signedIn(t, c, "abc")

	if c.tokens != nil {
		t.Fatal("WithTokens must not mutate the receiver")
	}
	if got := c.BaseURL().String(); got != "http://backend.local" {
		t.Fatalf("BaseURL = %q", got)
	}
}
