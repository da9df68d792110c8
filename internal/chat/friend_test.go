package chat

import (
	"testing"

	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/store"
)

func TestFriendshipLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")

	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	if r := svc.FriendInvite(alice.ID, "bob"); !r.OK {
		t.Fatalf("invite: %+v", r)
	}
	if r := svc.FriendInvite(alice.ID, "bob"); r.OK || r.Code != 409 {
		t.Fatalf("expected 409 on duplicate invite, got %+v", r)
	}
	if r := svc.FriendInvite(alice.ID, "alice"); r.OK || r.Code != 400 {
		t.Fatalf("expected 400 on self-invite, got %+v", r)
	}

	if r := svc.FriendAccept(bob.ID, "alice"); !r.OK {
		t.Fatalf("accept: %+v", r)
	}
	if r := svc.FriendAccept(bob.ID, "alice"); r.OK || r.Code != 404 {
		t.Fatalf("expected 404 re-accepting, got %+v", r)
	}

	mutual, err := svc.Store.FriendshipExists(alice.ID, bob.ID)
	if err != nil || !mutual {
		t.Fatalf("expected mutual friendship, got %v %v", mutual, err)
	}
	mutualRev, err := svc.Store.FriendshipExists(bob.ID, alice.ID)
	if err != nil || !mutualRev {
		t.Fatalf("expected symmetric friendship, got %v %v", mutualRev, err)
	}

	if r := svc.FriendDelete(alice.ID, "bob"); !r.OK {
		t.Fatalf("delete: %+v", r)
	}
	if mutual, _ := svc.Store.FriendshipExists(alice.ID, bob.ID); mutual {
		t.Fatalf("expected friendship removed")
	}
	if mutual, _ := svc.Store.FriendshipExists(bob.ID, alice.ID); mutual {
		t.Fatalf("expected symmetric removal")
	}
}

func TestFriendRejectClearsInviteWithoutFriendship(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	if r := svc.FriendInvite(alice.ID, "bob"); !r.OK {
		t.Fatalf("invite: %+v", r)
	}
	if r := svc.FriendReject(bob.ID, "alice"); !r.OK {
		t.Fatalf("reject: %+v", r)
	}
	if _, err := svc.Store.InviteGet(alice.ID, bob.ID); err != store.ErrNotFound {
		t.Fatalf("expected invite cleared, got %v", err)
	}
	if mutual, _ := svc.Store.FriendshipExists(alice.ID, bob.ID); mutual {
		t.Fatalf("expected no friendship after reject")
	}
}

func TestFriendListSortedByUsernameWithPresence(t *testing.T) {
	svc, sessions := newTestService(t)
	mustRegister(t, svc, "carol", "password123", "c@b.com")
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")

	carol, _ := svc.Store.UserGetByUsername("carol")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	for _, peer := range []string{"alice", "bob"} {
		svc.FriendInvite(carol.ID, peer)
	}
	svc.FriendAccept(alice.ID, "carol")
	svc.FriendAccept(bob.ID, "carol")

	if _, err := sessions.Login(session.NewConn(nil), bob.ID); err != nil {
		t.Fatalf("bob login: %v", err)
	}

	r := svc.FriendList(carol.ID)
	if !r.OK {
		t.Fatalf("friend list: %+v", r)
	}

	var names []string
	for _, kv := range r.Fields {
		if kv.K == "friend_0" || kv.K == "friend_1" {
			names = append(names, kv.V)
		}
	}
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Fatalf("expected [alice bob] sorted, got %v", names)
	}
}
