package handlers

import (
	"net/http"

	"stall_pos_backend/internal/services"
	"stall_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the auth service.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// LoginRequest is the credential payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles staff authentication and returns a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}

	token, user, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"user":         user,
	})
}

// RegisterRequest is the staff account-creation payload.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Role     string `json:"role" binding:"required"`
}

// Register handles creating a staff account. Admin only.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"Invalid request payload: "+err.Error(), ""))
		return
	}

	user, err := h.authService.Register(req.Username, req.Password, req.FullName, req.Role)
	if err != nil {
		utils.LogError(err, "Register failed")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
