package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/grafeo/grafeo-api/internal/core/ports"
)

type UserHandler struct {
	userService ports.UserService
}

func NewUserHandler(userService ports.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type userSummaryResponse struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Demo          bool       `json:"is_demo"`
	SocialLogin   bool       `json:"is_social_login"`
	AccessToken   string     `json:"access_token"`
	DemoExpiresAt *time.Time `json:"demo_expires_at,omitempty"`
}

type profileRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=40"`
	Username string `json:"username" validate:"required,min=3,max=15"`
	Email    string `json:"email" validate:"required,email,max=40"`
	Password string `json:"password" validate:"omitempty,min=6,max=20"`
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

// Me returns the current user with a refreshed token.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userSummaryResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	summary, err := h.userService.Me(c.Request().Context(), principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserSummaryResponse(summary))
}

// UpdateProfile changes the current user's profile.
//
// @Summary      Update profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      profileRequest  true  "Profile fields"
// @Success      200   {object}  apiResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/users/me [post]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req profileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	_, err = h.userService.UpdateProfile(c.Request().Context(), principal, ports.ProfileInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Profile updated"})
}

// CheckUsernameAvailability reports whether a username is free.
//
// @Summary      Username availability
// @Tags         users
// @Produce      json
// @Param        username  query     string  true  "Username"
// @Success      200       {object}  availabilityResponse
// @Router       /api/users/checkUsernameAvailability [get]
func (h *UserHandler) CheckUsernameAvailability(c echo.Context) error {
	username := c.QueryParam("username")
	if username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}

	available, err := h.userService.UsernameAvailable(c.Request().Context(), username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, availabilityResponse{Available: available})
}

// CheckEmailAvailability reports whether an email is free.
//
// @Summary      Email availability
// @Tags         users
// @Produce      json
// @Param        email  query     string  true  "Email"
// @Success      200    {object}  availabilityResponse
// @Router       /api/users/checkEmailAvailability [get]
func (h *UserHandler) CheckEmailAvailability(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	available, err := h.userService.EmailAvailable(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, availabilityResponse{Available: available})
}

func toUserSummaryResponse(s *ports.UserSummary) userSummaryResponse {
	resp := userSummaryResponse{
		ID:          s.ID,
		Username:    s.Username,
		Email:       s.Email,
		Name:        s.Name,
		Demo:        s.Demo,
		SocialLogin: s.SocialLogin,
		AccessToken: s.AccessToken,
	}
	if !s.DemoExpiresAt.IsZero() {
		expires := s.DemoExpiresAt
		resp.DemoExpiresAt = &expires
	}
	return resp
}
