package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/runar/internal/utils"
)

// Session identifies the user a session process acts for.
type Session struct {
	UserID string
	Role   string
}

// JWTProtected binds every request to the session user. When secret is empty the local API is
// trusted as-is; otherwise a bearer token whose subject is the session user is required.
func JWTProtected(secret string, session Session) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(session.Role))

	return func(c *fiber.Ctx) error {
		if secret != "" {
			authorization := c.Get("Authorization")
			if authorization == "" && c.Query("access_token") != "" {
				// Browsers cannot set headers on websocket upgrades.
				authorization = "Bearer " + c.Query("access_token")
			}
			subject, err := verifyBearer(authorization, secret)
			if err != nil {
				return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
			}
			if subject != session.UserID {
				return utils.SendError(c, fiber.StatusForbidden, "token subject does not match session user")
			}
		}

		c.Locals("user_id", session.UserID)
		c.Locals("user_role", role)
		return c.Next()
	}
}

func verifyBearer(authorization, secret string) (string, error) {
	if authorization == "" {
		return "", fmt.Errorf("authorization header missing")
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
		return "", fmt.Errorf("invalid authorization header")
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return "", fmt.Errorf("invalid token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	return extractSubject(claims), nil
}

func extractSubject(claims jwt.MapClaims) string {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if subject := normalizeSubject(value); subject != "" {
				return subject
			}
		}
	}
	return ""
}

func normalizeSubject(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v < 0 {
			return ""
		}
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
