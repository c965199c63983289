package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"beamcast/internal/core/services"
	apperrors "beamcast/pkg/errors"
	"beamcast/pkg/utils"
)

// AuthHandler issues operator tokens for the control API. The device is
// single-operator; possession of the provisioning secret is the only
// credential.
type AuthHandler struct {
	authService        services.AuthService
	provisioningSecret string
}

func NewAuthHandler(authService services.AuthService, provisioningSecret string) *AuthHandler {
	return &AuthHandler{
		authService:        authService,
		provisioningSecret: provisioningSecret,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/token", h.IssueToken)
	}
}

type IssueTokenRequest struct {
	Operator string `json:"operator" binding:"required,min=1,max=50"`
	Secret   string `json:"secret" binding:"required,max=128"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Operator = utils.TruncateString(utils.SanitizeString(req.Operator), 50)
	if req.Operator == "" {
		c.Error(apperrors.NewInvalidInputError("operator must not be empty"))
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.provisioningSecret)) != 1 {
		c.Error(apperrors.NewUnauthorizedError("invalid provisioning secret"))
		return
	}

	token, err := h.authService.GenerateToken(req.Operator)
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
	})
}
