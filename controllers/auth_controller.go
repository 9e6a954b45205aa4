package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postcore/middleware"
	"github.com/cppla/postcore/users"
	"github.com/cppla/postcore/utils"
)

// UserDirectory resolves uids to usernames.
type UserDirectory interface {
	Username(ctx context.Context, uid int64) (string, error)
}

// AuthController handles session endpoints. Tokens are issued by the account
// service sharing the JWT secret.
type AuthController struct {
	secret    string
	blacklist *utils.TokenBlacklist
	users     UserDirectory
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(secret string, blacklist *utils.TokenBlacklist, users UserDirectory) *AuthController {
	return &AuthController{secret: secret, blacklist: blacklist, users: users}
}

// Me returns the identity behind the bearer token.
func (a *AuthController) Me(ctx *gin.Context) {
	uid := middleware.UserID(ctx)
	name, err := a.users.Username(ctx.Request.Context(), uid)
	if errors.Is(err, users.ErrUserNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to load user")
		return
	}
	utils.Success(ctx, gin.H{"uid": uid, "username": name})
}

// Logout revokes the bearer token until it would have expired.
func (a *AuthController) Logout(ctx *gin.Context) {
	parts := strings.SplitN(ctx.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(a.secret, token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(72 * time.Hour)
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}
	if err := a.blacklist.Revoke(ctx.Request.Context(), token, expiresAt); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to revoke token")
		return
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}
