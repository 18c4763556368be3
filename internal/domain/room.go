package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	SlugAlphabet = "346789ABCDEFGHJKLMNPQRTUVWXYabcdefghijkmnpqrstuvwxy"
	SlugLength   = 8
)

// Room is the provisioning record behind a shareable canvas link.
type Room struct {
	ID        uuid.UUID
	Slug      string
	CreatedAt time.Time
}

// NewRoom constructs a room with a freshly generated slug.
func NewRoom() (*Room, error) {
	slug, err := GenerateSlug()
	if err != nil {
		return nil, err
	}
	return &Room{
		ID:        uuid.New(),
		Slug:      slug,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func GenerateSlug() (string, error) {
	return gonanoid.Generate(SlugAlphabet, SlugLength)
}

// ChannelName is the broadcast scope used for a room.
func ChannelName(slug string) string {
	return "room:" + slug
}

// ValidSlug reports whether s could have been produced by GenerateSlug.
func ValidSlug(s string) bool {
	if len(s) != SlugLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(SlugAlphabet, r) {
			return false
		}
	}
	return true
}
