package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"github.com/fatflowers/mollie-gateway/pkg/response"
)

// AdminSubjectKey holds the token subject in gin.Context after AdminAuth.
const AdminSubjectKey = "admin_subject"

var errNoBearer = errors.New("missing bearer token")

// AdminAuth accepts HS256 tokens signed with secret. An empty secret rejects
// every request so an unconfigured deployment never exposes admin routes.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseAdminToken(c.GetHeader("Authorization"), secret)
		if err != nil {
			c.Error(err) //nolint:errcheck
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
			return
		}
		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}

func parseAdminToken(header, secret string) (*jwt.StandardClaims, error) {
	if secret == "" {
		return nil, errors.New("admin auth is not configured")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errNoBearer
	}

	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid admin token: %w", err)
	}
	return claims, nil
}
