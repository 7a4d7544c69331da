package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/service"
)

type UserHandler struct {
	users *service.UserAdminService
}

func NewUserHandler(users *service.UserAdminService) *UserHandler {
	return &UserHandler{users: users}
}

type setRolesRequest struct {
	Roles domain.RoleSet `json:"roles" validate:"required"`
}

// List returns every user account.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {array}   domain.User
// @Failure      403  {object}  map[string]string
// @Router       /api/users [get]
func (h *UserHandler) List(c echo.Context) error {
	scope, err := ctxScope(c)
	if err != nil {
		return err
	}
	users, err := h.users.ListUsers(c.Request().Context(), scope.Backend)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Get returns one user account.
//
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  domain.User
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	scope, err := ctxScope(c)
	if err != nil {
		return err
	}
	u, err := h.users.GetUser(c.Request().Context(), scope.Backend, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// SetRoles replaces the role set of a user.
//
// @Summary      Set user roles
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      int              true  "User ID"
// @Param        body  body      setRolesRequest  true  "Complete role set"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/users/{id}/roles [put]
func (h *UserHandler) SetRoles(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	var req setRolesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	scope, err := ctxScope(c)
	if err != nil {
		return err
	}

	actor := scope.Session.State().User
	u, err := h.users.SetRoles(c.Request().Context(), scope.Backend, actor, id, req.Roles, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func userID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}
