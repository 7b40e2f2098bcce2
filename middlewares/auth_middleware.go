package middlewares

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

// TokenKey holds the raw session token so logout can revoke it.
const TokenKey = "token"

// Authenticator resolves session tokens into users.
type Authenticator struct {
	db         *gorm.DB
	jwt        *utils.JWTManager
	cookieName string
}

func NewAuthenticator(db *gorm.DB, jwt *utils.JWTManager, cookieName string) *Authenticator {
	return &Authenticator{db: db, jwt: jwt, cookieName: cookieName}
}

// tokenFromRequest looks at the session cookie first, then the bearer header.
func (a *Authenticator) tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(a.cookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func (a *Authenticator) authenticate(c *gin.Context, token string) bool {
	if token == "" {
		utils.RespondAppError(c, utils.NewUnauthorizedError("Authentication token missing"))
		c.Abort()
		return false
	}

	claims, err := a.jwt.ParseToken(token)
	if err != nil {
		utils.RespondAppError(c, utils.NewUnauthorizedError("Invalid or expired token"))
		c.Abort()
		return false
	}

	var user models.User
	err = a.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondAppError(c, utils.NewUnauthorizedError("User not found"))
		c.Abort()
		return false
	}
	if err != nil {
		utils.RespondAppError(c, utils.NewInternalError(err))
		c.Abort()
		return false
	}

	c.Set(utils.UserIDKey, user.ID)
	c.Set(utils.RoleKey, user.Role)
	c.Set(utils.UserKey, user)
	c.Set(TokenKey, token)
	return true
}

// AuthMiddleware requires a valid session and attaches the user.
func (a *Authenticator) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c, a.tokenFromRequest(c)) {
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by AuthMiddleware.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(utils.UserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
