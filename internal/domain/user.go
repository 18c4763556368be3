package domain

import (
	"strings"

	"github.com/google/uuid"
)

const DefaultAvatarGlyph = "😀"

// UserIdentity is the per-device participant profile. It is created once,
// persisted indefinitely and only ever edited by its owner.
type UserIdentity struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"name"`
	AvatarGlyph string    `json:"avatar"`
}

func NewUserIdentity(displayName, avatarGlyph string) *UserIdentity {
	avatarGlyph = strings.TrimSpace(avatarGlyph)
	if avatarGlyph == "" {
		avatarGlyph = DefaultAvatarGlyph
	}
	return &UserIdentity{
		ID:          uuid.New(),
		DisplayName: strings.TrimSpace(displayName),
		AvatarGlyph: avatarGlyph,
	}
}

// Meta returns the presence metadata published for this identity.
func (u *UserIdentity) Meta() PeerMeta {
	return PeerMeta{
		DisplayName: u.DisplayName,
		AvatarGlyph: u.AvatarGlyph,
		ColorHex:    ColorFromString(u.ID.String()),
	}
}

// SessionIdentity addresses one connection. It keys presence, cursor, tool
// and selection state and lives only as long as the session.
type SessionIdentity struct {
	ConnectionKey uuid.UUID `json:"key"`
}

func NewSessionIdentity() *SessionIdentity {
	return &SessionIdentity{ConnectionKey: uuid.New()}
}

func (s *SessionIdentity) Key() string {
	return s.ConnectionKey.String()
}
