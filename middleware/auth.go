package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postcore/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// Authenticator validates bearer tokens.
type Authenticator struct {
	secret    string
	blacklist *utils.TokenBlacklist
}

// NewAuthenticator creates an Authenticator. blacklist may be nil.
func NewAuthenticator(secret string, blacklist *utils.TokenBlacklist) *Authenticator {
	return &Authenticator{secret: secret, blacklist: blacklist}
}

// Required ensures the request is authenticated via JWT.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}
		if a.authenticate(ctx) {
			ctx.Next()
		}
	}
}

// Optional authenticates when a token is present and lets guests through
// otherwise. A present but bad token is still rejected.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") == "" {
			ctx.Next()
			return
		}
		if a.authenticate(ctx) {
			ctx.Next()
		}
	}
}

func (a *Authenticator) authenticate(ctx *gin.Context) bool {
	parts := strings.SplitN(ctx.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
		ctx.Abort()
		return false
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
		ctx.Abort()
		return false
	}

	if a.blacklist != nil && a.blacklist.IsRevoked(ctx.Request.Context(), tokenString) {
		utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
		ctx.Abort()
		return false
	}

	claims, err := utils.ParseToken(a.secret, tokenString)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		ctx.Abort()
		return false
	}

	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	return true
}

// UserID returns the authenticated uid, or 0 for guests.
func UserID(ctx *gin.Context) int64 {
	v, ok := ctx.Get(ContextUserIDKey)
	if !ok {
		return 0
	}
	uid, _ := v.(int64)
	return uid
}
