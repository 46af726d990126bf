package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-scheduling-api/internal/middleware"
	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
	Logout(ctx context.Context, refreshToken, userID string) error
	ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error
	Me(ctx context.Context, userID string) (*models.UserInfo, error)
}

// AuthHandler serves login, token rotation and the caller's own account.
type AuthHandler struct {
	service authService
}

func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate user
// @Description Exchanges email and password for an access and refresh token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	req.IP, req.UserAgent = client(c)

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Refresh godoc
// @Summary Rotate refresh token
// @Description A refresh token can be exchanged once; the response carries its replacement
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	req.IP, req.UserAgent = client(c)

	res, err := h.service.RefreshToken(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Revoke a session
// @Tags Authentication
// @Accept json
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 204 {string} string "No Content"
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "refresh_token is required"))
		return
	}
	if err := h.service.Logout(c.Request.Context(), req.RefreshToken, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword godoc
// @Summary Change password
// @Description Ends every session of the caller on success
// @Tags Authentication
// @Accept json
// @Param payload body models.ChangePasswordRequest true "Old and new password"
// @Success 204 {string} string "No Content"
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), userID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	info, err := h.service.Me(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// callerID writes 401 and reports false when the route ran without JWT.
func callerID(c *gin.Context) (string, bool) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.UserID, true
}

func client(c *gin.Context) (ip, userAgent string) {
	return c.ClientIP(), c.GetHeader("User-Agent")
}
