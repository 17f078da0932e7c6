package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/F-O-T/contentagen-nx-sub000/internal/http/response"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

// SubjectKey is the gin context key holding the token's subject.
const SubjectKey = "auth_subject"

type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), secret: []byte(secret)}
}

// Enabled reports whether a signing secret is configured. Without one the
// API is open.
func (am *AuthMiddleware) Enabled() bool { return len(am.secret) > 0 }

// RequireAuth accepts an HS256 bearer token from the Authorization header
// or, for EventSource clients, the token query parameter.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}
		tokenString := extractToken(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("%w: missing or invalid token", perrors.ErrUnauthorized))
			c.Abort()
			return
		}
		claims, err := am.Verify(tokenString)
		if err != nil {
			am.log.Debug("Token rejected", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			c.Abort()
			return
		}
		sub, _ := claims.GetSubject()
		c.Set(SubjectKey, sub)
		c.Next()
	}
}

func (am *AuthMiddleware) Verify(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrUnauthorized, err)
	}
	return claims, nil
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
