package middleware

import (
	"net/http"
	"os"
	"strings"

	"sattva/internal/model"
	"sattva/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}
	return []byte(secret)
}

// SetTokenCookies sets the access and refresh tokens as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, 3600*24, "/", "", secure, true)
	c.SetCookie("refresh_token", refreshToken, 3600*24*7, "/", "", secure, true)
}

// ClearTokenCookies removes the access and refresh token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

// extractToken reads the JWT from the access_token cookie, falling back to
// the Authorization header.
func extractToken(c *gin.Context) (string, bool) {
	tokenString, cookieErr := c.Cookie("access_token")
	if cookieErr == nil && tokenString != "" {
		return tokenString, true
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// parseClaims validates the token and resolves the caller's role once.
func parseClaims(tokenString string) (userID string, role model.Role, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return GetJWTSecret(), nil
	})
	if err != nil {
		return "", model.RoleUser, err
	}
	if !token.Valid {
		return "", model.RoleUser, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", model.RoleUser, jwt.ErrTokenInvalidClaims
	}

	sub, _ := claims["sub"].(string)
	roleName, _ := claims["role"].(string)
	return sub, model.ResolveRole([]string{roleName}), nil
}

// RequireRole validates the JWT and checks the resolved role against the
// allowed set.
func RequireRole(allowedRoles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing or malformed"))
			return
		}

		userID, role, err := parseClaims(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		allowed := false
		for _, r := range allowedRoles {
			if role == r {
				allowed = true
				break
			}
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set("userID", userID)
		c.Set("userRole", role)

		c.Next()
	}
}

// RequireAuth validates the JWT without restricting the role.
func RequireAuth() gin.HandlerFunc {
	return RequireRole(model.RoleUser, model.RoleWellnessGuide, model.RoleAdmin)
}

// UserID returns the authenticated user id stored by RequireRole.
func UserID(c *gin.Context) string {
	id, _ := c.Get("userID")
	s, _ := id.(string)
	return s
}
