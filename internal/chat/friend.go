package chat

import (
	"errors"
	"sort"

	"github.com/chatline/linechatd/internal/proto"
	"github.com/chatline/linechatd/internal/store"
	"github.com/chatline/linechatd/internal/types"
)

// resolveUsername is the common "username -> user_id" lookup shared by
// friendship and group handlers, mapping a missing account to not_found.
func (s *Service) resolveUsername(username string) (*types.User, proto.Result, bool) {
	u, err := s.Store.UserGetByUsername(username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, proto.NotFound("no such user"), false
		}
		return nil, proto.Internal("lookup failed"), false
	}
	return u, proto.Result{}, true
}

// FriendInvite records a directed pending invite from -> to.
func (s *Service) FriendInvite(from types.UserID, toUsername string) proto.Result {
	to, fail, ok := s.resolveUsername(toUsername)
	if !ok {
		return fail
	}
	if to.ID == from {
		return proto.BadRequest("cannot invite yourself")
	}

	if mutual, err := s.Store.FriendshipExists(from, to.ID); err != nil {
		return proto.Internal("lookup failed")
	} else if mutual {
		return proto.Conflict("already friends")
	}
	if _, err := s.Store.InviteGet(from, to.ID); err == nil {
		return proto.Conflict("invite already pending")
	}

	inv := &types.Invite{From: from, To: to.ID, CreatedAt: now()}
	if err := s.Store.InviteCreate(inv); err != nil {
		return proto.Internal("could not create invite")
	}
	return proto.Success()
}

// FriendAccept turns a pending invite other -> self into a mutual friendship.
func (s *Service) FriendAccept(self types.UserID, otherUsername string) proto.Result {
	other, fail, ok := s.resolveUsername(otherUsername)
	if !ok {
		return fail
	}
	if _, err := s.Store.InviteGet(other.ID, self); err != nil {
		return proto.NotFound("no pending invite")
	}
	if err := s.Store.InviteDelete(other.ID, self); err != nil {
		return proto.Internal("could not clear invite")
	}
	if err := s.Store.FriendshipCreate(self, other.ID); err != nil {
		return proto.Internal("could not create friendship")
	}
	return proto.Success()
}

// FriendReject discards a pending invite other -> self.
func (s *Service) FriendReject(self types.UserID, otherUsername string) proto.Result {
	other, fail, ok := s.resolveUsername(otherUsername)
	if !ok {
		return fail
	}
	if _, err := s.Store.InviteGet(other.ID, self); err != nil {
		return proto.NotFound("no pending invite")
	}
	if err := s.Store.InviteDelete(other.ID, self); err != nil {
		return proto.Internal("could not clear invite")
	}
	return proto.Success()
}

// FriendDelete removes an existing mutual friendship, either side may call it.
func (s *Service) FriendDelete(self types.UserID, otherUsername string) proto.Result {
	other, fail, ok := s.resolveUsername(otherUsername)
	if !ok {
		return fail
	}
	mutual, err := s.Store.FriendshipExists(self, other.ID)
	if err != nil {
		return proto.Internal("lookup failed")
	}
	if !mutual {
		return proto.NotFound("not a friend")
	}
	if err := s.Store.FriendshipDelete(self, other.ID); err != nil {
		return proto.Internal("could not delete friendship")
	}
	return proto.Success()
}

// FriendPending lists the usernames of inbound pending invites for self.
func (s *Service) FriendPending(self types.UserID) proto.Result {
	ids, err := s.Store.PendingInvitesFor(self)
	if err != nil {
		return proto.Internal("lookup failed")
	}
	users, err := s.Store.UserGetAll(ids...)
	if err != nil {
		return proto.Internal("lookup failed")
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	fields := make([]proto.KV, 0, len(users)+1)
	fields = append(fields, proto.FInt("count", int64(len(users))))
	for i, u := range users {
		fields = append(fields, proto.F(indexedKey("from", i), u.Username))
	}
	return proto.Success(fields...)
}

// FriendList returns self's friends, each annotated with online|offline
// presence, sorted by username ascending.
func (s *Service) FriendList(self types.UserID) proto.Result {
	ids, err := s.Store.FriendList(self)
	if err != nil {
		return proto.Internal("lookup failed")
	}
	users, err := s.Store.UserGetAll(ids...)
	if err != nil {
		return proto.Internal("lookup failed")
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	fields := make([]proto.KV, 0, len(users)*2+1)
	fields = append(fields, proto.FInt("count", int64(len(users))))
	for i, u := range users {
		presence := "offline"
		if s.Sessions.IsOnline(u.ID) {
			presence = "online"
		}
		fields = append(fields,
			proto.F(indexedKey("friend", i), u.Username),
			proto.F(indexedKey("presence", i), presence),
		)
	}
	return proto.Success(fields...)
}
