package chat

import (
	"testing"

	"github.com/chatline/linechatd/internal/session"
)

func TestRegisterRejectsInvalidFields(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		username, password, email string
	}{
		{"ab", "password123", "a@b.com"},
		{"alice", "short", "a@b.com"},
		{"alice", "password123", "not-an-email"},
	}
	for _, c := range cases {
		if r := svc.Register(c.username, c.password, c.email); r.OK || r.Code != 422 {
			t.Fatalf("expected 422 for %+v, got %+v", c, r)
		}
	}
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")

	r := svc.Register("alice", "password123", "a2@b.com")
	if r.OK || r.Code != 409 {
		t.Fatalf("expected 409 conflict, got %+v", r)
	}
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")

	conn := session.NewConn(nil)
	r := svc.Login(conn, "alice", "wrongpass")
	if r.OK || r.Code != 401 {
		t.Fatalf("expected 401, got %+v", r)
	}
}

func TestLoginSingleActiveSessionAcrossConnections(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")

	c1 := session.NewConn(nil)
	c2 := session.NewConn(nil)

	if r := svc.Login(c1, "alice", "password123"); !r.OK {
		t.Fatalf("c1 login: %+v", r)
	}
	r := svc.Login(c2, "alice", "password123")
	if r.OK || r.Code != 409 {
		t.Fatalf("expected 409 conflict on c2, got %+v", r)
	}
}

func TestDisconnectForeignTokenForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")

	c1 := session.NewConn(nil)
	c2 := session.NewConn(nil)
	loginResult := svc.Login(c1, "alice", "password123")
	var token string
	for _, kv := range loginResult.Fields {
		if kv.K == "token" {
			token = kv.V
		}
	}

	r := svc.Disconnect(c2, token)
	if r.OK || r.Code != 403 {
		t.Fatalf("expected 403 forbidden, got %+v", r)
	}
}

func TestLogoutThenWhoamiUnauthorized(t *testing.T) {
	svc, sessions := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")

	c1 := session.NewConn(nil)
	loginResult := svc.Login(c1, "alice", "password123")
	var token string
	for _, kv := range loginResult.Fields {
		if kv.K == "token" {
			token = kv.V
		}
	}

	if r := svc.Logout(token); !r.OK {
		t.Fatalf("logout: %+v", r)
	}
	if _, err := sessions.Validate(token); err == nil {
		t.Fatalf("expected token invalidated after logout")
	}
}
