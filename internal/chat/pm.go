package chat

import (
	"github.com/chatline/linechatd/internal/proto"
	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/types"
)

// PMChatStart focuses the caller's connection on a PM conversation with
// `with`, resets the unread counter for that peer, and returns recent
// history.
func (s *Service) PMChatStart(self types.UserID, conn *session.Conn, withUsername string) proto.Result {
	peer, fail, ok := s.resolveUsername(withUsername)
	if !ok {
		return fail
	}

	conn.SetFocus(types.ChatFocus{Kind: types.FocusPM, With: peer.ID})
	if err := s.Store.UnreadReset(self, peer.ID); err != nil {
		return proto.Internal("could not reset unread counter")
	}

	history, err := s.Store.PMHistory(self, peer.ID, s.historyDefaultLimit)
	if err != nil {
		return proto.Internal("could not load history")
	}
	return proto.Success(pmHistoryFields(history)...)
}

// PMChatEnd clears the caller's ChatFocus and resets the unread counter for
// whichever peer was in focus.
func (s *Service) PMChatEnd(self types.UserID, conn *session.Conn) proto.Result {
	focus := conn.ClearFocus()
	if focus.Kind != types.FocusPM {
		return proto.Success()
	}
	if err := s.Store.UnreadReset(self, focus.With); err != nil {
		return proto.Internal("could not reset unread counter")
	}
	return proto.Success()
}

// PMSend persists a PM and pushes it live to the recipient's connection only
// if that connection's ChatFocus is exactly PM(with=sender); otherwise it
// increments the recipient's unread counter.
// A third-party PM must never interrupt a user focused on someone else.
func (s *Service) PMSend(self types.UserID, selfUsername, toUsername string, content []byte) proto.Result {
	to, fail, ok := s.resolveUsername(toUsername)
	if !ok {
		return fail
	}
	if to.ID == self {
		return proto.BadRequest("cannot message yourself")
	}

	msg := &types.PMMessage{From: self, To: to.ID, Content: content, Timestamp: now()}
	if err := s.Store.PMSave(msg); err != nil {
		return proto.Internal("could not save message")
	}
	if s.Metrics != nil {
		s.Metrics.PMSentTotal.Inc()
	}

	if sess, online := s.Sessions.SessionForUser(to.ID); online {
		focus := sess.Conn.Focus()
		if focus.Kind == types.FocusPM && focus.With == self {
			line := proto.PushLine("PM",
				proto.F("from", selfUsername),
				proto.F("content", proto.EncodeContent(msg.Content)),
				proto.FInt("msg_id", msg.MsgID),
				proto.F("ts", msg.Timestamp.Format(timestampLayout)),
			)
			sess.Conn.WriteLine(line)
			s.recordPush(line)
			return proto.Success(proto.FInt("msg_id", msg.MsgID))
		}
	}

	if err := s.Store.UnreadIncr(to.ID, self); err != nil {
		return proto.Internal("could not update unread counter")
	}
	return proto.Success(proto.FInt("msg_id", msg.MsgID))
}

// PMHistory returns the last `limit` messages between self and `with`.
func (s *Service) PMHistory(self types.UserID, withUsername string, limit int) proto.Result {
	peer, fail, ok := s.resolveUsername(withUsername)
	if !ok {
		return fail
	}
	if limit <= 0 {
		limit = s.historyDefaultLimit
	}
	history, err := s.Store.PMHistory(self, peer.ID, limit)
	if err != nil {
		return proto.Internal("could not load history")
	}
	return proto.Success(pmHistoryFields(history)...)
}

// PMConversations returns self's peers with any PM history, each annotated
// with the unread counter.
func (s *Service) PMConversations(self types.UserID) proto.Result {
	convs, err := s.Store.PMConversations(self)
	if err != nil {
		return proto.Internal("could not load conversations")
	}
	ids := make([]types.UserID, len(convs))
	for i, c := range convs {
		ids[i] = c.Peer
	}
	users, err := s.Store.UserGetAll(ids...)
	if err != nil {
		return proto.Internal("lookup failed")
	}
	names := make(map[types.UserID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	fields := make([]proto.KV, 0, len(convs)*2+1)
	fields = append(fields, proto.FInt("count", int64(len(convs))))
	for i, c := range convs {
		fields = append(fields,
			proto.F(indexedKey("peer", i), names[c.Peer]),
			proto.FInt(indexedKey("unread", i), int64(c.Unread)),
		)
	}
	return proto.Success(fields...)
}

func pmHistoryFields(history []types.PMMessage) []proto.KV {
	fields := make([]proto.KV, 0, len(history)*4+1)
	fields = append(fields, proto.FInt("count", int64(len(history))))
	for i, m := range history {
		fields = append(fields,
			proto.FInt(indexedKey("msg_id", i), m.MsgID),
			proto.FInt(indexedKey("from", i), int64(m.From)),
			proto.F(indexedKey("content", i), proto.EncodeContent(m.Content)),
			proto.F(indexedKey("ts", i), m.Timestamp.Format(timestampLayout)),
		)
	}
	return fields
}
