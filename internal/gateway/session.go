package gateway

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dcrodman/anvil/internal/core/client"
	"github.com/dcrodman/anvil/internal/core/protocol"
)

// Session is what the server remembers about a player between their login
// and some time after their connection closes.
type Session struct {
	UUID            uuid.UUID
	Username        string
	Address         string
	ProtocolVersion int32
	Brand           string
	Settings        Settings
	State           protocol.State
	LoginTime       time.Time
	// PlayerID is the id of the persisted player, 0 if there's no database.
	PlayerID uint64
	// Connected is false once the connection has closed.
	Connected bool

	owner *client.Client
}

// Session returns a copy of the session for a player, if one exists.
func (s *Server) Session(id uuid.UUID) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.sessions.Get(id.String())
	if !ok {
		return Session{}, false
	}
	session := *v.(*Session)
	session.owner = nil
	return session, true
}

// startSession registers a new session owned by c. A player can only be
// logged in over one connection at a time.
func (s *Server) startSession(c *client.Client, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := session.UUID.String()
	if v, ok := s.sessions.Get(key); ok && v.(*Session).Connected {
		return fmt.Errorf("%w: %s", protocol.ErrDuplicateLogin, session.UUID)
	}

	session.Connected = true
	session.owner = c
	// Live sessions don't expire.
	s.sessions.Put(key, session, -1)
	return nil
}

// updateSession applies fn to the session owned by c, if c has one.
func (s *Server) updateSession(c *client.Client, fn func(session *Session)) {
	if c.Username == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.sessions.Get(c.UUID.String()); ok && v.(*Session).owner == c {
		fn(v.(*Session))
	}
}

// endSession marks the session owned by c as disconnected. It's kept around
// for the configured session TTL.
func (s *Server) endSession(c *client.Client) {
	if c.Username == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.UUID.String()
	v, ok := s.sessions.Get(key)
	if !ok || v.(*Session).owner != c {
		return
	}
	session := v.(*Session)
	session.Connected = false
	session.owner = nil
	// Zero uses the cache's default expiration, the session TTL.
	s.sessions.Put(key, session, 0)
}
