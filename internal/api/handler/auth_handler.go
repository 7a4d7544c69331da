package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
	"github.com/typeapproval/portal/internal/core/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ReturnTo string `json:"returnTo,omitempty"`
}

type signUpRequest struct {
	FirstName  string `json:"firstName" validate:"required,max=100"`
	Patronymic string `json:"patronymic,omitempty"`
	SecondName string `json:"secondName" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
}

type signInResponse struct {
	Session  domain.Session `json:"session"`
	Redirect string         `json:"redirect"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// SignIn exchanges credentials for a session.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials and optional return location"
// @Success      200   {object}  signInResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /auth/signin [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	scope, err := ctxScope(c)
	if err != nil {
		return err
	}

	state, err := h.authService.SignIn(c.Request().Context(), scope.Session, req.Email, req.Password, requestMeta(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, signInResponse{Session: state, Redirect: SafeReturnTo(req.ReturnTo)})
}

// SignUp creates an account without signing it in.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "New account details"
// @Success      201   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /auth/signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in := ports.SignUpInput{
		FirstName:  req.FirstName,
		Patronymic: req.Patronymic,
		SecondName: req.SecondName,
		Email:      req.Email,
		Password:   req.Password,
	}
	if err := h.authService.SignUp(c.Request().Context(), in, requestMeta(c)); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, messageResponse{Message: "account created"})
}

// Logout ends the current session.
//
// @Summary      Log out
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	scope, err := ctxScope(c)
	if err != nil {
		return err
	}
	h.authService.Logout(c.Request().Context(), scope.Session, requestMeta(c))
	return c.NoContent(http.StatusNoContent)
}

// Session reports the caller's resolved session.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  domain.Session
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	scope, err := ctxScope(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scope.Session.State())
}

// SafeReturnTo keeps returnTo only when it is a path on this site.
func SafeReturnTo(returnTo string) string {
	if returnTo == "" || !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") || strings.HasPrefix(returnTo, "/\\") {
		return "/"
	}
	u, err := url.Parse(returnTo)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return returnTo
}
