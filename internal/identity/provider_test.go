package identity

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type brokenStore struct{ closed bool }

var errBroken = errors.New("disk on fire")

func (s *brokenStore) Load(string) ([]byte, bool, error) { return nil, false, errBroken }
func (s *brokenStore) Save(string, []byte) error         { return errBroken }

func (s *brokenStore) Close() error {
	s.closed = true
	return nil
}

func TestUserIdentityRequiresProfileOnFirstUse(t *testing.T) {
	p := NewProvider(discardLogger(), nil, nil)

	_, err := p.UserIdentity(Profile{DisplayName: "   "})
	assert.ErrorIs(t, err, ErrProfileRequired)

	user, err := p.UserIdentity(Profile{DisplayName: " Ada ", AvatarGlyph: "🦊"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "Ada", user.DisplayName)
	assert.Equal(t, "🦊", user.AvatarGlyph)

	again, err := p.UserIdentity(Profile{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestUserIdentityDefaultsAvatar(t *testing.T) {
	p := NewProvider(discardLogger(), nil, nil)
	user, err := p.UserIdentity(Profile{DisplayName: "Bob"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.AvatarGlyph)
}

func TestUpdateProfileKeepsID(t *testing.T) {
	p := NewProvider(discardLogger(), nil, nil)
	user, err := p.UserIdentity(Profile{DisplayName: "Ada", AvatarGlyph: "🦊"})
	require.NoError(t, err)

	updated, err := p.UpdateProfile(Profile{DisplayName: "Ada L.", AvatarGlyph: "🐙"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, updated.ID)
	assert.Equal(t, "Ada L.", updated.DisplayName)

	stored, err := p.UserIdentity(Profile{})
	require.NoError(t, err)
	assert.Equal(t, "🐙", stored.AvatarGlyph)

	_, err = p.UpdateProfile(Profile{})
	assert.ErrorIs(t, err, ErrProfileRequired)
}

func TestIdentitySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.db")

	p := Open(path, discardLogger())
	user, err := p.UserIdentity(Profile{DisplayName: "Ada"})
	require.NoError(t, err)
	first := p.SessionIdentity()
	require.NoError(t, p.Close())

	p = Open(path, discardLogger())
	defer p.Close()
	again, err := p.UserIdentity(Profile{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Ada", again.DisplayName)

	// Session identities are not persisted beyond the process.
	assert.NotEqual(t, first.ConnectionKey, p.SessionIdentity().ConnectionKey)
}

func TestSessionIdentityIsStableWithinProvider(t *testing.T) {
	p := NewProvider(discardLogger(), nil, nil)
	a := p.SessionIdentity()
	b := p.SessionIdentity()
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, uuid.Nil, a.ConnectionKey)
}

func TestUnavailableStorageDegradesToMemory(t *testing.T) {
	durable, session := &brokenStore{}, &brokenStore{}
	p := NewProvider(discardLogger(), durable, session)

	user, err := p.UserIdentity(Profile{DisplayName: "Ada"})
	require.NoError(t, err)
	assert.True(t, durable.closed)

	again, err := p.UserIdentity(Profile{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	key := p.SessionIdentity().Key()
	assert.True(t, session.closed)
	assert.Equal(t, key, p.SessionIdentity().Key())
}

func TestOpenFallsBackWhenFileCannotBeOpened(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "identity.db")
	p := Open(path, discardLogger())
	defer p.Close()

	user, err := p.UserIdentity(Profile{DisplayName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.DisplayName)
}
