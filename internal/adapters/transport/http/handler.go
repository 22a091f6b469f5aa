// Package http exposes the authentication and user-management services
// over a gin router.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/accounthub/auth-service/internal/adapters/transport/http/dto"
	"github.com/accounthub/auth-service/internal/adapters/transport/http/middleware"
	authsvc "github.com/accounthub/auth-service/internal/app/auth/service"
	usersvc "github.com/accounthub/auth-service/internal/app/user/service"
	customErrors "github.com/accounthub/auth-service/internal/domain/auth/errors"
	"github.com/accounthub/auth-service/internal/infra/config"
)

type Handler struct {
	auth  authsvc.Service
	users usersvc.Service
	log   *zap.Logger
}

func NewHandler(auth authsvc.Service, users usersvc.Service, log *zap.Logger) *Handler {
	return &Handler{auth: auth, users: users, log: log}
}

// NewRouter wires the full middleware chain and all routes. User
// management sits behind the bearer-token guard; the auth endpoints and
// user creation are reachable unauthenticated.
func NewRouter(cfg *config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(h.log))
	r.Use(middleware.NewRateLimitPerIP(20, 40, 10_000, 10*time.Minute))
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/access", h.authenticate)
	auth.POST("/refresh", h.refresh)
	auth.POST("/logout", h.logout)
	auth.POST("/validate", h.validate)
	auth.POST("/forgot-password", h.forgotPassword)
	auth.POST("/reset-password", h.resetPassword)
	auth.POST("/change-password", h.changePassword)

	users := v1.Group("/users")
	users.POST("", h.saveUser)
	protected := users.Group("", middleware.RequireAuth(h.auth))
	protected.GET("", h.listUsers)
	protected.GET("/:id", h.getUser)
	protected.PUT("/:id", h.updateUser)
	protected.PATCH("/:id/status", h.changeStatus)
	protected.DELETE("/:id", h.deleteUser)

	return r
}

func (h *Handler) authenticate(c *gin.Context) {
	var req dto.SignInDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, customErrors.NewInvalidArgument(err.Error()))
		return
	}
	pair, err := h.auth.Authenticate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(pair.AccessTTL.Seconds()),
		UserID:       pair.UserID.String(),
	})
}

// refresh and logout carry the refresh token in the Authorization bearer
// header, never in a body.
func (h *Handler) refresh(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		h.fail(c, customErrors.ErrUnauthorized)
		return
	}
	pair, err := h.auth.Refresh(c.Request.Context(), dto.RefreshDTO{RefreshToken: token})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   int(pair.AccessTTL.Seconds()),
		UserID:      pair.UserID.String(),
	})
}

func (h *Handler) logout(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		h.fail(c, customErrors.ErrUnauthorized)
		return
	}
	if err := h.auth.Logout(c.Request.Context(), dto.LogoutDTO{RefreshToken: token}); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) validate(c *gin.Context) {
	var req dto.ValidateDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, customErrors.NewInvalidArgument(err.Error()))
		return
	}
	user, err := h.auth.Validate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":   user.ID.String(),
		"username": user.Username,
		"type":     string(user.Type),
	})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, customErrors.NewInvalidArgument(err.Error()))
		return
	}
	msg, err := h.auth.ForgotPassword(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req dto.ResetPasswordDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, customErrors.NewInvalidArgument(err.Error()))
		return
	}
	confirmation, err := h.auth.ResetPassword(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmation": confirmation})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req dto.ChangePasswordDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, customErrors.NewInvalidArgument(err.Error()))
		return
	}
	msg, err := h.auth.ChangePassword(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) saveUser(c *gin.Context) {
	var req dto.UserRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, customErrors.NewInvalidArgument(err.Error()))
		return
	}
	id, err := h.users.SaveUser(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id.String()})
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.UserRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, customErrors.NewInvalidArgument(err.Error()))
		return
	}
	if err := h.users.UpdateUser(c.Request.Context(), id, req); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) changeStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, customErrors.NewInvalidArgument(err.Error()))
		return
	}
	if err := h.users.ChangeStatus(c.Request.Context(), id, req.Status); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.users.DeleteUser(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) listUsers(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", 20)

	result, err := h.users.ListUsers(c.Request.Context(), page, size, c.QueryArray("sort")...)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, customErrors.NewInvalidArgument("id must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

// fail maps service errors onto HTTP statuses. Client-facing messages stay
// generic; the real cause goes to the log only.
func (h *Handler) fail(c *gin.Context, err error) {
	var status int
	var msg string
	switch {
	case customErrors.IsInvalidArgument(err):
		status, msg = http.StatusBadRequest, err.Error()
	case customErrors.IsInvalidCredentials(err),
		customErrors.IsTokenInvalid(err),
		customErrors.IsTokenExpired(err),
		customErrors.IsTokenRevoked(err),
		customErrors.IsUnauthorized(err):
		status, msg = http.StatusUnauthorized, "authentication failed"
	case customErrors.IsAccountDisabled(err):
		status, msg = http.StatusForbidden, "account is not active"
	case customErrors.IsNotFound(err):
		status, msg = http.StatusNotFound, "not found"
	case customErrors.IsAlreadyExists(err):
		status, msg = http.StatusConflict, "already exists"
	case customErrors.IsSecretInvalid(err),
		customErrors.IsSecretExpired(err),
		customErrors.IsSecretAlreadyUsed(err),
		customErrors.IsPasswordPolicy(err):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	default:
		status, msg = http.StatusInternalServerError, "internal error"
		h.log.Error("request failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
