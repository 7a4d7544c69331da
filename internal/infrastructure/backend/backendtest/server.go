// Package backendtest runs an in-process stand-in for the certification REST
// backend. It issues HS256 JWTs on sign-in, stores bcrypt password hashes and
// serves the profile and user-management endpoints the portal consumes.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/typeapproval/portal/internal/core/domain"
)

const secret = "backendtest-secret"

type account struct {
	user domain.User
	hash []byte
}

// Server is a fake backend. Zero or more accounts are added with AddUser.
type Server struct {
	*httptest.Server

	// RolesAsObjects makes user payloads carry roles as {"name": ...} objects.
	RolesAsObjects bool
	// ProfileGate, when set, is received from before /users/profile answers.
	ProfileGate chan struct{}

	mu       sync.Mutex
	accounts map[int64]*account
	nextID   int64

	profileCalls atomic.Int64
}

// New starts a fake backend that is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{accounts: make(map[int64]*account), nextID: 1}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account and returns its profile.
func (s *Server) AddUser(email, password string, roles ...domain.Role) domain.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{ID: s.nextID, Email: email, FirstName: "Test", SecondName: "User", Roles: append(domain.RoleSet(nil), roles...)}
	s.accounts[u.ID] = &account{user: u, hash: hash}
	s.nextID++
	return u
}

// TokenFor issues a credential for id valid for ttl. A negative ttl yields an
// expired credential.
func (s *Server) TokenFor(id int64, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(id, 10),
		"exp": time.Now().Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}

// ProfileCalls reports how many times /users/profile was hit.
func (s *Server) ProfileCalls() int64 {
	return s.profileCalls.Load()
}

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.POST("/auth/signin", s.signIn)
	e.POST("/auth/signup", s.signUp)

	authed := e.Group("", s.auth)
	authed.GET("/users/profile", s.profile)
	authed.GET("/users/all", s.listUsers, directorOnly)
	authed.GET("/users/:id", s.getUser, directorOnly)
	authed.PUT("/users/:id/roles", s.setRoles, directorOnly)
	authed.Any("/tasks*", s.echoRequest)
	authed.Any("/declarations*", s.echoRequest)
	authed.Any("/certificates*", s.echoRequest)
	authed.Any("/contracts*", s.echoRequest)
	authed.Any("/reference*", s.echoRequest)
	return e
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) signIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid payload"})
	}
	acc := s.byEmail(req.Email)
	if acc == nil || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}
	return c.JSON(http.StatusOK, map[string]string{"jwt": s.TokenFor(acc.user.ID, time.Hour)})
}

type signUpRequest struct {
	FirstName  string `json:"firstName"`
	Patronymic string `json:"patronymic"`
	SecondName string `json:"secondName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (s *Server) signUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid payload"})
	}
	if len(req.Password) < 6 {
		return c.JSON(http.StatusBadRequest, map[string][]string{"message": {"password must be longer than or equal to 6 characters"}})
	}
	if s.byEmail(req.Email) != nil {
		return c.JSON(http.StatusConflict, map[string]string{"message": "user already exists"})
	}
	u := s.AddUser(req.Email, req.Password, domain.RoleEmpty)
	s.mu.Lock()
	acc := s.accounts[u.ID]
	acc.user.FirstName, acc.user.SecondName, acc.user.Patronymic = req.FirstName, req.SecondName, req.Patronymic
	s.mu.Unlock()
	return c.NoContent(http.StatusCreated)
}

func (s *Server) profile(c echo.Context) error {
	s.profileCalls.Add(1)
	if s.ProfileGate != nil {
		<-s.ProfileGate
	}
	return c.JSON(http.StatusOK, s.payload(c.Get("user").(domain.User)))
}

func (s *Server) listUsers(c echo.Context) error {
	s.mu.Lock()
	out := make([]any, 0, len(s.accounts))
	for id := int64(1); id < s.nextID; id++ {
		if acc, ok := s.accounts[id]; ok {
			out = append(out, s.payloadLocked(acc.user))
		}
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getUser(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	acc, ok := s.accounts[id]
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "user not found"})
	}
	return c.JSON(http.StatusOK, s.payload(acc.user))
}

func (s *Server) setRoles(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	var req struct {
		Roles domain.RoleSet `json:"roles"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid payload"})
	}
	s.mu.Lock()
	acc, ok := s.accounts[id]
	if ok {
		acc.user.Roles = req.Roles
	}
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "user not found"})
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) echoRequest(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"method": c.Request().Method,
		"path":   c.Request().URL.Path,
		"query":  c.Request().URL.RawQuery,
	})
}

// auth validates the bearer JWT and loads the account it names.
func (s *Server) auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}

		claims := jwt.MapClaims{}
		tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !tkn.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}

		sub, _ := claims.GetSubject()
		id, _ := strconv.ParseInt(sub, 10, 64)
		s.mu.Lock()
		acc, ok := s.accounts[id]
		s.mu.Unlock()
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}
		c.Set("user", acc.user)
		return next(c)
	}
}

func directorOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u := c.Get("user").(domain.User)
		if !u.Roles.Contains(domain.RoleDirector) {
			return c.JSON(http.StatusForbidden, map[string]string{"message": "Forbidden resource"})
		}
		return next(c)
	}
}

func (s *Server) byEmail(email string) *account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.user.Email, email) {
			return acc
		}
	}
	return nil
}

type roleObject struct {
	Name string `json:"name"`
}

func (s *Server) payload(u domain.User) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloadLocked(u)
}

func (s *Server) payloadLocked(u domain.User) any {
	if !s.RolesAsObjects {
		return u
	}
	roles := make([]roleObject, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = roleObject{Name: string(r)}
	}
	return map[string]any{
		"id":         u.ID,
		"secondName": u.SecondName,
		"firstName":  u.FirstName,
		"patronymic": u.Patronymic,
		"email":      u.Email,
		"roles":      roles,
	}
}
