package middleware

import (
	"strings"

	"ridehail/internal/models"
	"ridehail/internal/utils"

	"github.com/gin-gonic/gin"
)

// TokenValidator is implemented by services.AuthService.
type TokenValidator interface {
	ValidateToken(token string) (*utils.JWTClaims, error)
}

// AuthRequired validates the bearer token and sets the user id and role on
// the context. Websocket upgrades may pass the token as a query parameter
// instead, since browsers cannot set headers on them.
func AuthRequired(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			utils.UnauthorizedResponse(c, "authorization token required")
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(tokenString)
		if err != nil {
			utils.UnauthorizedResponse(c, utils.ErrInvalidToken)
			c.Abort()
			return
		}

		userID, err := claims.ObjectID()
		if err != nil {
			utils.UnauthorizedResponse(c, utils.ErrInvalidToken)
			c.Abort()
			return
		}

		c.Set(utils.ContextUserID, userID)
		c.Set(utils.ContextUserRole, claims.Role)

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token != header {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("token")
	}
	return ""
}

// RoleRequired must run after AuthRequired.
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(utils.ContextUserRole)
		if !exists {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}

		roleStr, _ := role.(string)
		for _, allowed := range roles {
			if roleStr == string(allowed) {
				c.Next()
				return
			}
		}

		utils.ForbiddenResponse(c, "access denied for role "+roleStr)
		c.Abort()
	}
}

func AdminRequired() gin.HandlerFunc {
	return RoleRequired(models.UserRoleAdmin)
}

func DriverRequired() gin.HandlerFunc {
	return RoleRequired(models.UserRoleDriver)
}

func PassengerRequired() gin.HandlerFunc {
	return RoleRequired(models.UserRolePassenger)
}
