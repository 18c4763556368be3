// Package identity provides the per-device user identity and the
// per-session connection identity.
package identity

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

var ErrProfileRequired = errors.New("display name is required before joining")

const (
	userKey    = "user"
	sessionKey = "session"
)

type Profile struct {
	DisplayName string
	AvatarGlyph string
}

// Provider hands out identities. Storage failures never surface to callers:
// the failing store is swapped for an in-memory one and a warning logged.
type Provider struct {
	log *slog.Logger

	mu      sync.Mutex
	durable Store
	session Store
}

func NewProvider(log *slog.Logger, durable, session Store) *Provider {
	if log == nil {
		log = slog.Default()
	}
	if durable == nil {
		durable = NewMemoryStore()
	}
	if session == nil {
		session = NewMemoryStore()
	}
	return &Provider{log: log, durable: durable, session: session}
}

// Open builds a provider over a bbolt file at path, or over memory when the
// file cannot be opened.
func Open(path string, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	var durable Store
	store, err := OpenBolt(path)
	if err != nil {
		log.Warn("identity storage unavailable, identity will not survive restart",
			slog.String("path", path), sl.Err(err))
		durable = NewMemoryStore()
	} else {
		durable = store
	}
	return NewProvider(log, durable, NewMemoryStore())
}

// UserIdentity returns the stored identity, creating it from profile on
// first use. A missing identity with a blank profile is ErrProfileRequired.
func (p *Provider) UserIdentity(profile Profile) (*domain.UserIdentity, error) {
	const op = "identity.user"

	p.mu.Lock()
	defer p.mu.Unlock()

	if user, ok := p.loadUser(op); ok {
		return user, nil
	}
	if strings.TrimSpace(profile.DisplayName) == "" {
		return nil, ErrProfileRequired
	}

	user := domain.NewUserIdentity(profile.DisplayName, profile.AvatarGlyph)
	p.saveUser(op, user)
	return user, nil
}

// UpdateProfile edits the display name and avatar, keeping the id.
func (p *Provider) UpdateProfile(profile Profile) (*domain.UserIdentity, error) {
	const op = "identity.update_profile"

	if strings.TrimSpace(profile.DisplayName) == "" {
		return nil, ErrProfileRequired
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.loadUser(op)
	if !ok {
		user = domain.NewUserIdentity(profile.DisplayName, profile.AvatarGlyph)
	} else {
		updated := domain.NewUserIdentity(profile.DisplayName, profile.AvatarGlyph)
		updated.ID = user.ID
		user = updated
	}
	p.saveUser(op, user)
	return user, nil
}

// SessionIdentity returns this session's connection key, creating it once.
func (p *Provider) SessionIdentity() *domain.SessionIdentity {
	const op = "identity.session"

	p.mu.Lock()
	defer p.mu.Unlock()

	raw, ok, err := p.session.Load(sessionKey)
	if err != nil {
		p.degradeSession(op, err)
	}
	if ok {
		var s domain.SessionIdentity
		if err := json.Unmarshal(raw, &s); err == nil {
			return &s
		}
	}

	s := domain.NewSessionIdentity()
	if raw, err := json.Marshal(s); err == nil {
		if err := p.session.Save(sessionKey, raw); err != nil {
			p.degradeSession(op, err)
			_ = p.session.Save(sessionKey, raw)
		}
	}
	return s
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.durable.Close(), p.session.Close())
}

func (p *Provider) loadUser(op string) (*domain.UserIdentity, bool) {
	raw, ok, err := p.durable.Load(userKey)
	if err != nil {
		p.degradeDurable(op, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var user domain.UserIdentity
	if err := json.Unmarshal(raw, &user); err != nil {
		p.log.Warn("discarding unreadable identity record", slog.String("op", op), sl.Err(err))
		return nil, false
	}
	return &user, true
}

func (p *Provider) saveUser(op string, user *domain.UserIdentity) {
	raw, err := json.Marshal(user)
	if err != nil {
		p.log.Error("encode identity", slog.String("op", op), sl.Err(err))
		return
	}
	if err := p.durable.Save(userKey, raw); err != nil {
		p.degradeDurable(op, err)
		_ = p.durable.Save(userKey, raw)
	}
}

func (p *Provider) degradeDurable(op string, err error) {
	p.log.Warn("identity storage failed, falling back to memory", slog.String("op", op), sl.Err(err))
	_ = p.durable.Close()
	p.durable = NewMemoryStore()
}

func (p *Provider) degradeSession(op string, err error) {
	p.log.Warn("session storage failed, falling back to memory", slog.String("op", op), sl.Err(err))
	_ = p.session.Close()
	p.session = NewMemoryStore()
}
