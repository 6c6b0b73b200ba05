package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grafeo/grafeo-api/internal/api/metrics"
	"github.com/grafeo/grafeo-api/internal/core/domain"
	"github.com/grafeo/grafeo-api/internal/core/ports"
)

const tokenTypeBearer = "Bearer"

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type signInRequest struct {
	UsernameOrEmail string `json:"username_or_email" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

type federatedLoginRequest struct {
	Token  string `json:"token" validate:"required"`
	UserID string `json:"user_id" validate:"required"`
	Email  string `json:"email" validate:"required,email,max=40"`
	Name   string `json:"name" validate:"required,max=40"`
}

type signUpRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=40"`
	Username string `json:"username" validate:"required,min=3,max=15"`
	Email    string `json:"email" validate:"required,email,max=40"`
	Password string `json:"password" validate:"required,min=6,max=20"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SignIn authenticates a local account and returns a session token.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  tokenResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/signin [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token, _, err := h.authService.SignIn(c.Request().Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("local", signInResult(err)).Inc()
		return err
	}

	metrics.SignInsTotal.WithLabelValues("local", "ok").Inc()
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: tokenTypeBearer})
}

// FederatedSignIn exchanges a provider token for a session token, creating
// the account on first use.
//
// @Summary      Federated sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      federatedLoginRequest  true  "Provider token and profile"
// @Success      200   {object}  tokenResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/auth/fb/login [post]
func (h *AuthHandler) FederatedSignIn(c echo.Context) error {
	var req federatedLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token, _, err := h.authService.FederatedSignIn(c.Request().Context(), ports.FederatedLoginInput{
		Token:     req.Token,
		SubjectID: req.UserID,
		Email:     req.Email,
		Name:      req.Name,
	})
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("federated", signInResult(err)).Inc()
		return err
	}

	metrics.SignInsTotal.WithLabelValues("federated", "ok").Inc()
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: tokenTypeBearer})
}

// DemoSignIn creates a disposable demo account with sample data.
//
// @Summary      Demo sign in
// @Tags         auth
// @Produce      json
// @Success      200   {object}  tokenResponse
// @Failure      500   {object}  map[string]string
// @Router       /api/auth/demo/signin [post]
func (h *AuthHandler) DemoSignIn(c echo.Context) error {
	token, _, err := h.authService.DemoSignIn(c.Request().Context())
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("demo", "error").Inc()
		return err
	}

	metrics.SignInsTotal.WithLabelValues("demo", "ok").Inc()
	metrics.DemoIdentitiesCreatedTotal.Inc()
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: tokenTypeBearer})
}

// SignUp registers a local account.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Account details"
// @Success      201   {object}  apiResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/auth/signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	identity, err := h.authService.SignUp(c.Request().Context(), ports.SignUpInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			result = "duplicate"
		}
		metrics.SignUpsTotal.WithLabelValues(result).Inc()
		return err
	}

	metrics.SignUpsTotal.WithLabelValues("ok").Inc()
	c.Response().Header().Set(echo.HeaderLocation, "/api/users/"+identity.Username)
	return c.JSON(http.StatusCreated, apiResponse{Success: true, Message: "User registered successfully"})
}

func signInResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthenticationFailed),
		errors.Is(err, domain.ErrFederatedTokenRejected),
		errors.Is(err, domain.ErrEmailAlreadyInUse):
		return "rejected"
	}
	return "error"
}
