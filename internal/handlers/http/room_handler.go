package http

import (
	"net/http"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"
	apperrors "livegrid/pkg/errors"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	rooms ports.RoomService
}

func NewRoomHandler(rooms ports.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func (h *RoomHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/rooms", h.ListRooms)
	router.POST("/rooms/create", h.CreateRoom)
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRooms(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// CreateRoom forwards the request body to the room service as sent and
// answers with the room object it returned.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abortWithError(c, apperrors.NewInvalidInputError("invalid room options: "+err.Error()))
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), domain.RoomOptions(body))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", room)
}
