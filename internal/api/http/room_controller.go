package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sritampatnaik/Magic-Canvas/internal/api/http/converter"
	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/repository"
	"github.com/sritampatnaik/Magic-Canvas/internal/service"
)

// ChannelServer serves one websocket member of a room channel until the
// connection ends.
type ChannelServer interface {
	ServeConn(ctx context.Context, conn *websocket.Conn, slug, key string)
}

type RoomController struct {
	rooms     service.RoomInteractor
	channels  ChannelServer
	publicURL string
	log       *slog.Logger
	upgrader  websocket.Upgrader
}

func NewRoomController(rooms service.RoomInteractor, channels ChannelServer, publicURL string, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		rooms:     rooms,
		channels:  channels,
		publicURL: publicURL,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (c *RoomController) CreateRoom(ctx *gin.Context) {
	room, err := c.rooms.CreateRoom(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}
	ctx.JSON(http.StatusOK, converter.CreatedRoomToApi(room, c.origin(ctx)))
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	info, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrInvalidSlug):
			status = http.StatusBadRequest
		case errors.Is(err, repository.ErrRoomNotFound):
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(info)})
}

// JoinRoom upgrades to the room channel. Any well-formed slug is a valid
// channel, provisioned or not.
func (c *RoomController) JoinRoom(ctx *gin.Context) {
	slug := ctx.Param("slug")
	if !domain.ValidSlug(slug) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room slug"})
		return
	}
	key := ctx.Query("key")
	if key == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Warn("failed to upgrade connection", slog.String("slug", slug), slog.Any("error", err))
		return
	}

	c.channels.ServeConn(ctx.Request.Context(), conn, slug, key)
}

// origin prefers the caller's Origin header, then the configured public
// URL, then the request host.
func (c *RoomController) origin(ctx *gin.Context) string {
	if origin := ctx.GetHeader("Origin"); origin != "" {
		return origin
	}
	if c.publicURL != "" {
		return c.publicURL
	}
	scheme := "http"
	if ctx.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + ctx.Request.Host
}
