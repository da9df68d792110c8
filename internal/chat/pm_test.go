package chat

import (
	"testing"

	"github.com/chatline/linechatd/internal/proto"
	"github.com/chatline/linechatd/internal/session"
)

func TestPMSendPushesWhenRecipientFocused(t *testing.T) {
	svc, sessions := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	bobConn := session.NewConn(nil)
	if _, err := sessions.Login(bobConn, bob.ID); err != nil {
		t.Fatalf("bob login: %v", err)
	}
	if r := svc.PMChatStart(bob.ID, bobConn, "alice"); !r.OK {
		t.Fatalf("pm chat start: %+v", r)
	}

	content, _ := proto.DecodeContent(proto.EncodeContent([]byte("hi")))
	r := svc.PMSend(alice.ID, "alice", "bob", content)
	if !r.OK {
		t.Fatalf("pm send: %+v", r)
	}

	unread, err := svc.Store.UnreadGet(bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("unread get: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected unread to stay 0 when pushed live, got %d", unread)
	}
}

func TestPMSendDoesNotInterruptThirdParty(t *testing.T) {
	svc, sessions := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	mustRegister(t, svc, "carol", "password123", "c@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")
	carol, _ := svc.Store.UserGetByUsername("carol")

	aliceConn := session.NewConn(nil)
	if _, err := sessions.Login(aliceConn, alice.ID); err != nil {
		t.Fatalf("alice login: %v", err)
	}
	if r := svc.PMChatStart(alice.ID, aliceConn, "bob"); !r.OK {
		t.Fatalf("pm chat start: %+v", r)
	}

	r := svc.PMSend(carol.ID, "carol", "alice", []byte("psst"))
	if !r.OK {
		t.Fatalf("pm send: %+v", r)
	}

	unread, err := svc.Store.UnreadGet(alice.ID, carol.ID)
	if err != nil {
		t.Fatalf("unread get: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected unread incremented for third party, got %d", unread)
	}
}

func TestPMChatStartResetsUnread(t *testing.T) {
	svc, sessions := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	svc.PMSend(bob.ID, "bob", "alice", []byte("hey"))
	unread, _ := svc.Store.UnreadGet(alice.ID, bob.ID)
	if unread != 1 {
		t.Fatalf("expected unread 1 before focus, got %d", unread)
	}

	aliceConn := session.NewConn(nil)
	if _, err := sessions.Login(aliceConn, alice.ID); err != nil {
		t.Fatalf("alice login: %v", err)
	}
	if r := svc.PMChatStart(alice.ID, aliceConn, "bob"); !r.OK {
		t.Fatalf("pm chat start: %+v", r)
	}
	unread, _ = svc.Store.UnreadGet(alice.ID, bob.ID)
	if unread != 0 {
		t.Fatalf("expected unread reset to 0, got %d", unread)
	}
}

func TestPMSendToSelfRejected(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")

	r := svc.PMSend(alice.ID, "alice", "alice", []byte("hi"))
	if r.OK || r.Code != 400 {
		t.Fatalf("expected 400 messaging self, got %+v", r)
	}
}

func TestPMMsgIDMonotonicPerPair(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	r1 := svc.PMSend(alice.ID, "alice", "bob", []byte("one"))
	r2 := svc.PMSend(bob.ID, "bob", "alice", []byte("two"))
	id1 := fieldInt(r1, "msg_id")
	id2 := fieldInt(r2, "msg_id")
	if id2 <= id1 {
		t.Fatalf("expected monotonic msg_id across both directions, got %d then %d", id1, id2)
	}
}
