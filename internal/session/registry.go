package session

import (
	"errors"
	"sync"
	"time"

	"github.com/chatline/linechatd/internal/auth"
	"github.com/chatline/linechatd/internal/types"
)

// ErrConflict is returned by Login when the account already has an active
// session on a different connection.
var ErrConflict = errors.New("session: account already has an active session")

// ErrUnauthorized is returned by Validate/Logout for an absent or expired token.
var ErrUnauthorized = errors.New("session: invalid or expired token")

// Session is the authenticated binding between a token, a user and a
// connection, with an idle-expiry clock.
type Session struct {
	Token        string
	UID          types.UserID
	Conn         *Conn
	LastActivity time.Time
}

// Registry tracks every live connection and every active session. The
// connection registry and the session manager are small enough to share one
// lock without sacrificing lock ordering: Registry sits at the "Sessions"
// tier, below Accounts and above Friends/Groups/PM/GM.
type Registry struct {
	mu sync.Mutex

	byToken map[string]*Session
	byUser  map[types.UserID]*Session
	conns   map[*Conn]bool

	signer *auth.TokenSigner
}

// NewRegistry constructs an empty registry using signer to mint tokens.
func NewRegistry(signer *auth.TokenSigner) *Registry {
	return &Registry{
		byToken: make(map[string]*Session),
		byUser:  make(map[types.UserID]*Session),
		conns:   make(map[*Conn]bool),
		signer:  signer,
	}
}

// Track registers a newly-accepted connection with the registry.
func (r *Registry) Track(c *Conn) {
	r.mu.Lock()
	r.conns[c] = true
	r.mu.Unlock()
}

// Login issues a fresh token for uid on conn:
//   - another session for uid on a different connection -> ErrConflict
//   - a prior session already bound to conn is invalidated first
func (r *Registry) Login(c *Conn, uid types.UserID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byUser[uid]; ok {
		if existing.Conn != c {
			return "", ErrConflict
		}
		delete(r.byToken, existing.Token)
		delete(r.byUser, uid)
	}

	token, err := r.signer.Generate()
	if err != nil {
		return "", err
	}

	sess := &Session{Token: token, UID: uid, Conn: c, LastActivity: time.Now()}
	r.byToken[token] = sess
	r.byUser[uid] = sess
	c.setToken(token)

	return token, nil
}

// Validate returns the user owning token and refreshes its last-activity
// clock. Every authenticated verb goes through this, including WHOAMI.
func (r *Registry) Validate(token string) (types.UserID, error) {
	if token == "" {
		return types.ZeroUser, ErrUnauthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byToken[token]
	if !ok {
		return types.ZeroUser, ErrUnauthorized
	}
	sess.LastActivity = time.Now()
	return sess.UID, nil
}

// Logout destroys the session owning token. The connection stays open.
func (r *Registry) Logout(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byToken[token]
	if !ok {
		return ErrUnauthorized
	}
	delete(r.byToken, token)
	delete(r.byUser, sess.UID)
	sess.Conn.clearToken()
	return nil
}

// IsOnline reports whether uid currently has an active session, for
// FRIEND_LIST presence annotation.
func (r *Registry) IsOnline(uid types.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUser[uid]
	return ok
}

// SessionForUser returns the single active session for uid, if any. At most
// one exists at a time.
func (r *Registry) SessionForUser(uid types.UserID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byUser[uid]
	return sess, ok
}

// Close destroys any session bound to c (involuntary cleanup on connection
// close) and stops tracking c.
func (r *Registry) Close(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token := c.Token()
	if token != "" {
		if sess, ok := r.byToken[token]; ok {
			delete(r.byToken, token)
			delete(r.byUser, sess.UID)
		}
		c.clearToken()
	}
	delete(r.conns, c)
}

// ActiveCount returns the number of currently active sessions, for metrics.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byToken)
}

// Sweep destroys every session whose last activity is older than idle. It
// returns the tokens destroyed.
func (r *Registry) Sweep(idle time.Duration) []string {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	var destroyed []string
	for token, sess := range r.byToken {
		if sess.LastActivity.Before(cutoff) {
			destroyed = append(destroyed, token)
			delete(r.byToken, token)
			delete(r.byUser, sess.UID)
			sess.Conn.clearToken()
		}
	}
	return destroyed
}
