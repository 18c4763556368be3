package converter

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/service"
)

type RoomResponse struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	Online    int       `json:"online"`
}

type CreatedRoomResponse struct {
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

func RoomToApi(info *service.RoomInfo) *RoomResponse {
	return &RoomResponse{
		ID:        info.Room.ID,
		Slug:      info.Room.Slug,
		CreatedAt: info.Room.CreatedAt,
		Online:    info.Online,
	}
}

// CreatedRoomToApi builds the shareable join link under origin.
func CreatedRoomToApi(room *domain.Room, origin string) *CreatedRoomResponse {
	return &CreatedRoomResponse{
		Slug: room.Slug,
		URL:  JoinURL(origin, room.Slug),
	}
}

func JoinURL(origin, slug string) string {
	return strings.TrimRight(origin, "/") + "/room/" + slug + "/join"
}
