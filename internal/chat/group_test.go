package chat

import "testing"

func TestGroupCreateOwnerIsMember(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")

	r := svc.GroupCreate(alice.ID, "book-club")
	if !r.OK {
		t.Fatalf("create: %+v", r)
	}
	var groupID int64
	for _, kv := range r.Fields {
		if kv.K == "group_id" {
			groupID = mustParseInt(t, kv.V)
		}
	}

	g, err := svc.Store.GroupGet(groupFromID(groupID))
	if err != nil {
		t.Fatalf("group get: %v", err)
	}
	if !g.HasMember(alice.ID) || g.Owner != alice.ID {
		t.Fatalf("expected owner to be first member, got %+v", g)
	}
}

func TestGroupAddNonOwnerForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	mustRegister(t, svc, "carol", "password123", "c@b.com")

	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	create := svc.GroupCreate(alice.ID, "g")
	groupID := groupFromID(fieldInt(create, "group_id"))

	if r := svc.GroupAdd(bob.ID, groupID, "carol"); r.OK || r.Code != 403 {
		t.Fatalf("expected 403 for non-owner add, got %+v", r)
	}
}

func TestGroupRemoveOwnerSelfBadRequest(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")

	create := svc.GroupCreate(alice.ID, "g")
	groupID := groupFromID(fieldInt(create, "group_id"))

	if r := svc.GroupRemove(alice.ID, groupID, "alice"); r.OK || r.Code != 400 {
		t.Fatalf("expected 400 removing owner, got %+v", r)
	}
}

func TestGroupLeaveOwnerRejected(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")

	create := svc.GroupCreate(alice.ID, "g")
	groupID := groupFromID(fieldInt(create, "group_id"))

	if r := svc.GroupLeave(alice.ID, groupID); r.OK || r.Code != 400 {
		t.Fatalf("expected 400 owner leaving, got %+v", r)
	}
}

func TestGroupMembersRestrictedToMembers(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "password123", "a@b.com")
	mustRegister(t, svc, "bob", "password123", "b@b.com")
	alice, _ := svc.Store.UserGetByUsername("alice")
	bob, _ := svc.Store.UserGetByUsername("bob")

	create := svc.GroupCreate(alice.ID, "g")
	groupID := groupFromID(fieldInt(create, "group_id"))

	if r := svc.GroupMembers(bob.ID, groupID); r.OK || r.Code != 403 {
		t.Fatalf("expected 403 for non-member, got %+v", r)
	}

	svc.GroupAdd(alice.ID, groupID, "bob")
	r := svc.GroupMembers(bob.ID, groupID)
	if !r.OK {
		t.Fatalf("expected ok for member, got %+v", r)
	}
}
