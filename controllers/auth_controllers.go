package controllers

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/middlewares"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/services"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type AuthController struct {
	DB           *gorm.DB
	JWT          *utils.JWTManager
	Audit        *services.AuditService
	CookieName   string
	CookieSecure bool
}

func NewAuthController(db *gorm.DB, jwt *utils.JWTManager, audit *services.AuditService, cookieName string, cookieSecure bool) *AuthController {
	return &AuthController{DB: db, JWT: jwt, Audit: audit, CookieName: cookieName, CookieSecure: cookieSecure}
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registration struct {
	Name       string      `json:"name" binding:"required"`
	Email      string      `json:"email" binding:"required"`
	Password   string      `json:"password" binding:"required"`
	Role       models.Role `json:"role"`
	PharmacyID *uint       `json:"pharmacy_id"`
}

// Login checks the password and hands out a session token, both as an
// HttpOnly cookie and in the body.
func (ac *AuthController) Login(c *gin.Context) {
	var input credentials
	if !bindJSON(c, &input) {
		return
	}

	var user models.User
	if err := ac.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&user).Error; err != nil {
		utils.RespondAppError(c, utils.NewUnauthorizedError("Invalid email or password"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		utils.RespondAppError(c, utils.NewUnauthorizedError("Invalid email or password"))
		return
	}

	token, err := ac.JWT.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		utils.RespondAppError(c, utils.NewInternalError(err))
		return
	}
	ac.setSessionCookie(c, token, int(ac.JWT.TTL().Seconds()))

	utils.InfoLogger.WithField("user_id", user.ID).Info("login successful")
	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token": token,
		"user":  user,
	})
}

// Signup is the public registration path; it only creates clients.
func (ac *AuthController) Signup(c *gin.Context) {
	var req registration
	if !bindJSON(c, &req) {
		return
	}
	req.Role = models.RoleClient
	req.PharmacyID = nil
	ac.createUser(c, req, services.Actor{Origin: c.ClientIP(), Role: models.RoleClient})
}

// Register lets an admin create an account of any role.
func (ac *AuthController) Register(c *gin.Context) {
	var req registration
	if !bindJSON(c, &req) {
		return
	}
	if !req.Role.Valid() {
		utils.RespondAppError(c, utils.NewValidationError("role", "is not a known role"))
		return
	}
	ac.createUser(c, req, actorFrom(c))
}

func (ac *AuthController) createUser(c *gin.Context, req registration, actor services.Actor) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		utils.RespondAppError(c, utils.NewValidationError("email", "is not a valid address"))
		return
	}
	if len(req.Password) < minPasswordLength {
		utils.RespondAppError(c, utils.NewValidationError("password", "must be at least 6 characters"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondAppError(c, utils.NewInternalError(err))
		return
	}

	user := models.User{
		Name:       strings.TrimSpace(req.Name),
		Email:      email,
		Password:   string(hashed),
		Role:       req.Role,
		PharmacyID: req.PharmacyID,
	}
	err = ac.DB.WithContext(c.Request.Context()).Create(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.RespondAppError(c, utils.NewConflictError("Email already registered", nil))
		return
	}
	if err != nil {
		utils.RespondAppError(c, utils.NewInternalError(err))
		return
	}

	if actor.ID == 0 {
		actor.ID = user.ID
	}
	ac.Audit.Record(c.Request.Context(), services.AuditEntry{
		Actor:       actor,
		EntityType:  services.AuditEntityUser,
		EntityID:    strconv.FormatUint(uint64(user.ID), 10),
		Action:      services.AuditUserRegistered,
		Description: "User registered with role " + string(user.Role),
	})
	utils.InfoLogger.WithField("user_id", user.ID).Infof("new user registered (role=%s)", user.Role)
	utils.RespondJSON(c, http.StatusCreated, "User registered", user)
}

// Logout revokes the current token and clears the cookie.
func (ac *AuthController) Logout(c *gin.Context) {
	if token := c.GetString(middlewares.TokenKey); token != "" {
		ac.JWT.Blacklist(token)
	}
	ac.setSessionCookie(c, "", -1)
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}

func (ac *AuthController) Me(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondAppError(c, utils.NewUnauthorizedError("Not authenticated"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Current user", user)
}

func (ac *AuthController) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ac.CookieName, value, maxAge, "/", "", ac.CookieSecure, true)
}
