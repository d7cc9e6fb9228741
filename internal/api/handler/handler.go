// Package handler is the HTTP edge: gin routes for accounts, messages and
// donors, and the websocket upgrade for the realtime layer.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/auth"
	"bloodlink/backend/internal/chat"
	"bloodlink/backend/internal/chathub"
	"bloodlink/backend/internal/donor"
	"bloodlink/backend/internal/models"
	"bloodlink/backend/internal/storage"
)

// Handler holds the services behind every route.
type Handler struct {
	Hub    *chathub.ManagerService
	Chat   *chat.Service
	Donors *donor.Service
	Users  storage.UserStore
	Tokens *auth.Manager
	Log    *zap.Logger

	// RestrictJoin is passed to every realtime session.
	RestrictJoin bool
}

func NewHandler(hub *chathub.ManagerService, chatSvc *chat.Service, donors *donor.Service, users storage.UserStore, tokens *auth.Manager, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Hub:    hub,
		Chat:   chatSvc,
		Donors: donors,
		Users:  users,
		Tokens: tokens,
		Log:    log,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", h.RegisterUser)
	authGroup.POST("/login", h.Login)

	messages := r.Group("/messages", h.RequireAuth())
	messages.POST("/send", h.SendMessage)
	messages.GET("/conversations", h.ListConversations)
	messages.GET("/:otherUserId", h.GetMessages)

	donors := r.Group("/api/donors")
	donors.GET("", h.ListDonors)
	donors.GET("/:id", h.GetDonor)
	donors.POST("", h.OptionalAuth(), h.CreateDonor)

	admin := donors.Group("", h.RequireAuth(), RequireRole(models.RoleAdmin))
	admin.PUT("/:id", h.UpdateDonor)
	admin.PATCH("/:id/availability", h.ToggleAvailability)
	admin.DELETE("/:id", h.DeleteDonor)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
}

// fail writes the error envelope for err. Causes of server errors are
// logged, never returned.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": apperr.PublicMessage(err)})
}
