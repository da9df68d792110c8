package chat

import (
	"testing"

	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/types"
)

func TestGMFanOutExcludesSender(t *testing.T) {
	svc, sessions := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	create := svc.GroupCreate(alice.ID, "g")
	groupID := groupFromID(fieldInt(create, "group_id"))
	svc.GroupAdd(alice.ID, groupID, "bob")

	aliceConn := session.NewConn(nil)
	bobConn := session.NewConn(nil)
	sessions.Login(aliceConn, alice.ID)
	sessions.Login(bobConn, bob.ID)

	if r := svc.GMChatStart(alice.ID, "alice", aliceConn, groupID); !r.OK {
		t.Fatalf("alice chat start: %+v", r)
	}
	if r := svc.GMChatStart(bob.ID, "bob", bobConn, groupID); !r.OK {
		t.Fatalf("bob chat start: %+v", r)
	}

	if r := svc.GMSend(alice.ID, "alice", aliceConn, groupID, []byte("hi all")); !r.OK {
		t.Fatalf("send: %+v", r)
	}

	room := svc.roomSnapshot(groupID)
	if len(room) != 2 {
		t.Fatalf("expected both connections still in room, got %d", len(room))
	}
}

func TestGMKickPathForbidsFurtherSend(t *testing.T) {
	svc, sessions := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	mustRegister(t, svc, "carol", "password123", "c@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")
	carol, _ := svc.Store.UserGetByUsername("carol")

	create := svc.GroupCreate(alice.ID, "g")
	groupID := groupFromID(fieldInt(create, "group_id"))
	svc.GroupAdd(alice.ID, groupID, "bob")
	svc.GroupAdd(alice.ID, groupID, "carol")

	aliceConn := session.NewConn(nil)
	bobConn := session.NewConn(nil)
	carolConn := session.NewConn(nil)
	sessions.Login(aliceConn, alice.ID)
	sessions.Login(bobConn, bob.ID)
	sessions.Login(carolConn, carol.ID)

	svc.GMChatStart(alice.ID, "alice", aliceConn, groupID)
	svc.GMChatStart(bob.ID, "bob", bobConn, groupID)
	svc.GMChatStart(carol.ID, "carol", carolConn, groupID)

	if r := svc.GroupRemove(alice.ID, groupID, "carol"); !r.OK {
		t.Fatalf("remove carol: %+v", r)
	}

	if carolConn.Focus().Kind != types.FocusNone {
		t.Fatalf("expected carol's focus cleared after kick")
	}
	room := svc.roomSnapshot(groupID)
	if len(room) != 2 {
		t.Fatalf("expected carol removed from room, got %d members", len(room))
	}

	if r := svc.GMSend(carol.ID, "carol", carolConn, groupID, []byte("still here?")); r.OK || r.Code != 403 {
		t.Fatalf("expected 403 for kicked member send, got %+v", r)
	}
}

func TestGMHistoryRequiresMembership(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	create := svc.GroupCreate(alice.ID, "g")
	groupID := groupFromID(fieldInt(create, "group_id"))

	if r := svc.GMHistory(bob.ID, groupID, 10); r.OK || r.Code != 403 {
		t.Fatalf("expected 403 for non-member history, got %+v", r)
	}
}
