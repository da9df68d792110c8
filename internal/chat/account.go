package chat

import (
	"errors"

	"github.com/chatline/linechatd/internal/auth"
	"github.com/chatline/linechatd/internal/notify"
	"github.com/chatline/linechatd/internal/proto"
	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/store"
	"github.com/chatline/linechatd/internal/types"
)

// Register creates a new account. It never touches the session registry; a
// fresh account must still LOGIN.
func (s *Service) Register(username, password, email string) proto.Result {
	if !validUsername(username) || !validPassword(password) || !validEmail(email) {
		return proto.Validation("invalid username, password or email")
	}

	salt, err := randomSalt()
	if err != nil {
		return proto.Internal("could not generate salt")
	}
	digest, err := auth.HashPassword(password, salt)
	if err != nil {
		return proto.Internal("could not hash password")
	}

	u := &types.User{
		Username:       username,
		PasswordDigest: digest,
		Salt:           salt,
		Email:          email,
		CreatedAt:      now(),
	}
	if err := s.Store.UserCreate(u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return proto.Conflict("username already taken")
		}
		return proto.Internal("could not create account")
	}

	notify.Notify(&notify.Receipt{Username: u.Username, Email: u.Email, What: "welcome", Timestamp: u.CreatedAt})

	return proto.Success(proto.FInt("user_id", int64(u.ID)))
}

// Login authenticates username/password and binds a fresh session to conn,
// enforcing the single-active-session rule.
func (s *Service) Login(conn *session.Conn, username, password string) proto.Result {
	u, err := s.Store.UserGetByUsername(username)
	if err != nil {
		return proto.Unauthorized("invalid username or password")
	}
	if !auth.CheckPassword(u.PasswordDigest, u.Salt, password) {
		return proto.Unauthorized("invalid username or password")
	}

	token, err := s.Sessions.Login(conn, u.ID)
	if err != nil {
		if errors.Is(err, session.ErrConflict) {
			return proto.Conflict("account already has an active session")
		}
		return proto.Internal("could not create session")
	}
	if s.Metrics != nil {
		s.Metrics.SessionsActive.Set(float64(s.Sessions.ActiveCount()))
	}

	return proto.Success(proto.F("token", token))
}

// Logout destroys the session bound to token. The connection stays open.
func (s *Service) Logout(token string) proto.Result {
	if err := s.Sessions.Logout(token); err != nil {
		return proto.Unauthorized("invalid or expired token")
	}
	if s.Metrics != nil {
		s.Metrics.SessionsActive.Set(float64(s.Sessions.ActiveCount()))
	}
	return proto.Success()
}

// Whoami returns the caller's own account identity.
func (s *Service) Whoami(uid types.UserID) proto.Result {
	u, err := s.Store.UserGet(uid)
	if err != nil {
		return proto.Internal("account record missing")
	}
	return proto.Success(proto.FInt("user_id", int64(u.ID)), proto.F("username", u.Username))
}

// Disconnect destroys any session bound to conn (token is optional: if
// supplied it must belong to conn's own session). The caller closes the
// connection after writing the reply.
func (s *Service) Disconnect(conn *session.Conn, token string) proto.Result {
	if token != "" && conn.Token() != token {
		return proto.Forbidden("token does not belong to this connection")
	}
	s.leaveAllRooms(conn)
	s.Sessions.Close(conn)
	if s.Metrics != nil {
		s.Metrics.SessionsActive.Set(float64(s.Sessions.ActiveCount()))
	}
	return proto.Success()
}
