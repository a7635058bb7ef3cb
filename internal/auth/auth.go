// Package auth guards the administrative API with HS256 bearer tokens. The
// public webhook path stays open; external systems are not token holders.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SubjectKey is the gin context key holding the validated token subject.
const SubjectKey = "auth_subject"

// Validator checks HS256 bearer tokens against a shared secret.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured. With no secret the
// middleware is a pass-through.
func (v *Validator) Enabled() bool { return len(v.secret) > 0 }

// ValidateToken parses and verifies tokenString, returning the subject claim.
func (v *Validator) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %v", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("missing sub claim")
	}
	return sub, nil
}

// IssueToken mints a token for operator tooling.
func (v *Validator) IssueToken(subject string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", fmt.Errorf("no signing secret configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString(v.secret)
}

// Middleware returns a gin middleware enforcing a valid bearer token.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.Enabled() {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		subject, err := v.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(SubjectKey, subject)
		c.Next()
	}
}
