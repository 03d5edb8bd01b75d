package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/api-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/api-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// Handler handles HTTP requests for accounts, rooms and history.
type Handler struct {
	userService    service.UserService
	roomService    service.RoomService
	historyService service.HistoryService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	userService service.UserService,
	roomService service.RoomService,
	historyService service.HistoryService,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		userService:    userService,
		roomService:    roomService,
		historyService: historyService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		users := api.Group("/users")
		users.Use(h.authMiddleware.RequireAuth())
		{
			users.GET("/me", h.GetMe)
		}

		rooms := api.Group("/rooms")
		{
			// Public routes
			rooms.GET("", h.ListRooms)
			rooms.GET("/:id", h.GetRoom)

			// Protected routes
			rooms.POST("", h.authMiddleware.RequireAuth(), h.CreateRoom)
			rooms.POST("/:id/join", h.authMiddleware.RequireAuth(), h.JoinRoom)
			rooms.GET("/:id/messages", h.authMiddleware.RequireAuth(), h.GetHistory)
		}
	}
}

// Register handles user registration.
func (h *Handler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind register request")
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.userService.Register(ctx, &req)
	if err != nil {
		if errors.Is(err, service.ErrUsernameExists) {
			response.Conflict(c, "username already exists")
			return
		}
		l.Error().Err(err).Msg("failed to register user")
		response.InternalError(c, "failed to register user")
		return
	}

	response.Created(c, user)
}

// Login handles user login.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.userService.Login(ctx, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid username or password")
			return
		}
		l.Error().Err(err).Msg("failed to login")
		response.InternalError(c, "failed to login")
		return
	}

	response.Success(c, resp)
}

// GetMe returns the authenticated user.
func (h *Handler) GetMe(c *gin.Context) {
	ctx := c.Request.Context()

	user, err := h.userService.GetUser(ctx, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.InternalError(c, "failed to get user")
		return
	}

	response.Success(c, user)
}

// CreateRoom creates a new room.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(ctx, userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordRequired):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrRoomNameExists):
			response.Conflict(c, "room name already exists")
		default:
			l.Error().Err(err).Msg("failed to create room")
			response.InternalError(c, "failed to create room")
		}
		return
	}

	response.Created(c, room)
}

// GetRoom retrieves a room by ID.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")

	room, err := h.roomService.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to get room")
		response.InternalError(c, "failed to get room")
		return
	}

	response.Success(c, room)
}

// ListRooms lists rooms with pagination.
func (h *Handler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.ListRoomsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.roomService.ListRooms(ctx, &req)
	if err != nil {
		l.Error().Err(err).Msg("failed to list rooms")
		response.InternalError(c, "failed to list rooms")
		return
	}

	response.Success(c, result)
}

// JoinRoom makes the caller a member of a room.
func (h *Handler) JoinRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")

	// The body is optional for public rooms.
	var req domain.JoinRoomRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	resp, err := h.roomService.JoinRoom(ctx, middleware.GetUserID(c), roomID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			response.NotFound(c, "room not found")
		case errors.Is(err, service.ErrWrongPassword):
			response.Forbidden(c, "wrong room password")
		default:
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to join room")
			response.InternalError(c, "failed to join room")
		}
		return
	}

	response.Success(c, resp)
}

// GetHistory returns stored messages of a room, newest first.
func (h *Handler) GetHistory(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")

	var req domain.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.historyService.GetHistory(ctx, middleware.GetUserID(c), roomID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			response.NotFound(c, "room not found")
		case errors.Is(err, service.ErrNotMember):
			response.Forbidden(c, "not a member of this room")
		default:
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to get history")
			response.InternalError(c, "failed to get history")
		}
		return
	}

	response.Success(c, resp)
}

// HealthCheck handles health check requests.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
