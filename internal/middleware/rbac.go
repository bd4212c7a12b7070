package middleware

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/runar/internal/utils"
)

// RequireRole admits requests whose session role, set by JWTProtected, is one of roles.
// A request that reached it without a role never passed session authentication.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}
	names := make([]string, 0, len(allowed))
	for role := range allowed {
		names = append(names, role)
	}
	sort.Strings(names)
	denied := "requires role " + strings.Join(names, " or ")

	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals("user_role"))
		if role == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "session role missing")
		}
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, denied)
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	role, _ := value.(string)
	return strings.ToLower(strings.TrimSpace(role))
}
