package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/nexcard/nexcard/internal/auth"
	"github.com/nexcard/nexcard/internal/middleware"
	"github.com/nexcard/nexcard/internal/models"
	"github.com/nexcard/nexcard/internal/services"
	appErrors "github.com/nexcard/nexcard/pkg/errors"
	"github.com/nexcard/nexcard/pkg/response"
)

// AuthHandler covers registration, login, and the current-user endpoint.
type AuthHandler struct {
	accounts *services.AccountService
	jwt      *iauth.JWTService
}

// NewAuthHandler configures the auth handler.
func NewAuthHandler(accounts *services.AccountService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{accounts: accounts, jwt: jwt}
}

type registerRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=64"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"omitempty,max=128"`
	LastName  string `json:"last_name" validate:"omitempty,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type authResponse struct {
	User  userDTO `json:"user"`
	Token string  `json:"token"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.accounts.Register(requestContext(c), services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			response.Error(c, appErrors.ErrConflict)
			return
		}
		response.Error(c, appErrors.FromError(err))
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to issue token"))
		return
	}

	response.Success(c, http.StatusCreated, authResponse{User: toUserDTO(user), Token: token})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.accounts.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			response.Error(c, appErrors.ErrInvalidCredentials)
			return
		}
		response.Error(c, appErrors.FromError(err))
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to issue token"))
		return
	}

	response.Success(c, http.StatusOK, authResponse{User: toUserDTO(user), Token: token})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := c.Get(middleware.CtxClaimsKey)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	authClaims, ok := claims.(*iauth.Claims)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user_id": authClaims.UserID})
}

func toUserDTO(user *models.User) userDTO {
	return userDTO{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}
