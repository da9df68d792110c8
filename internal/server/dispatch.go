package server

import (
	"strconv"

	"github.com/chatline/linechatd/internal/proto"
	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/types"
)

// dispatcher binds one connection's lifetime to Server, so every handler
// call below has exactly the arguments that verb requires.
type dispatcher struct {
	s    *Server
	conn *session.Conn
}

// authContext is the caller identity established by a validated token.
type authContext struct {
	uid      types.UserID
	username string
}

// authenticate validates req's token field, refreshing last_activity as a
// side effect of session.Registry.Validate.
func (d *dispatcher) authenticate(req *proto.Request) (authContext, proto.Result, bool) {
	token := req.KV["token"]
	uid, err := d.s.Sessions.Validate(token)
	if err != nil {
		return authContext{}, proto.Unauthorized("invalid or expired token"), false
	}
	who := d.s.Chat.Whoami(uid)
	if !who.OK {
		return authContext{}, who, false
	}
	username := ""
	for _, kv := range who.Fields {
		if kv.K == "username" {
			username = kv.V
		}
	}
	return authContext{uid: uid, username: username}, proto.Result{}, true
}

func requireKeys(req *proto.Request, keys ...string) (proto.Result, bool) {
	for _, k := range keys {
		if req.KV[k] == "" {
			return proto.BadRequest("missing required key: " + k), false
		}
	}
	return proto.Result{}, true
}

func parseGroupID(s string) (types.GroupID, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return types.GroupID(n), true
}

func parseLimit(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// dispatch routes one parsed request to its handler. Unknown verbs and
// missing required keys are rejected before touching any business logic,
// through the same uniform error envelope every handler returns.
func (d *dispatcher) dispatch(req *proto.Request) proto.Result {
	switch req.Verb {
	case "PING":
		return proto.Success(proto.F("pong", "1"))

	case "REGISTER":
		if fail, ok := requireKeys(req, "username", "password", "email"); !ok {
			return fail
		}
		return d.s.Chat.Register(req.KV["username"], req.KV["password"], req.KV["email"])

	case "LOGIN":
		if fail, ok := requireKeys(req, "username", "password"); !ok {
			return fail
		}
		return d.s.Chat.Login(d.conn, req.KV["username"], req.KV["password"])

	case "LOGOUT":
		if fail, ok := requireKeys(req, "token"); !ok {
			return fail
		}
		return d.s.Chat.Logout(req.KV["token"])

	case "WHOAMI":
		auth, fail, ok := d.authenticate(req)
		if !ok {
			return fail
		}
		return d.s.Chat.Whoami(auth.uid)

	case "DISCONNECT":
		return d.s.Chat.Disconnect(d.conn, req.KV["token"])

	case "FRIEND_INVITE":
		auth, fail, ok := d.authed(req, "username")
		if !ok {
			return fail
		}
		return d.s.Chat.FriendInvite(auth.uid, req.KV["username"])

	case "FRIEND_ACCEPT":
		auth, fail, ok := d.authed(req, "username")
		if !ok {
			return fail
		}
		return d.s.Chat.FriendAccept(auth.uid, req.KV["username"])

	case "FRIEND_REJECT":
		auth, fail, ok := d.authed(req, "username")
		if !ok {
			return fail
		}
		return d.s.Chat.FriendReject(auth.uid, req.KV["username"])

	case "FRIEND_DELETE":
		auth, fail, ok := d.authed(req, "username")
		if !ok {
			return fail
		}
		return d.s.Chat.FriendDelete(auth.uid, req.KV["username"])

	case "FRIEND_PENDING":
		auth, fail, ok := d.authed(req)
		if !ok {
			return fail
		}
		return d.s.Chat.FriendPending(auth.uid)

	case "FRIEND_LIST":
		auth, fail, ok := d.authed(req)
		if !ok {
			return fail
		}
		return d.s.Chat.FriendList(auth.uid)

	case "GROUP_CREATE":
		auth, fail, ok := d.authed(req, "name")
		if !ok {
			return fail
		}
		return d.s.Chat.GroupCreate(auth.uid, req.KV["name"])

	case "GROUP_ADD":
		auth, groupID, fail, ok := d.authedGroup(req, "username")
		if !ok {
			return fail
		}
		return d.s.Chat.GroupAdd(auth.uid, groupID, req.KV["username"])

	case "GROUP_REMOVE":
		auth, groupID, fail, ok := d.authedGroup(req, "username")
		if !ok {
			return fail
		}
		return d.s.Chat.GroupRemove(auth.uid, groupID, req.KV["username"])

	case "GROUP_LEAVE":
		auth, groupID, fail, ok := d.authedGroup(req)
		if !ok {
			return fail
		}
		return d.s.Chat.GroupLeave(auth.uid, groupID)

	case "GROUP_LIST":
		auth, fail, ok := d.authed(req)
		if !ok {
			return fail
		}
		return d.s.Chat.GroupList(auth.uid)

	case "GROUP_MEMBERS":
		auth, groupID, fail, ok := d.authedGroup(req)
		if !ok {
			return fail
		}
		return d.s.Chat.GroupMembers(auth.uid, groupID)

	case "PM_CHAT_START":
		auth, fail, ok := d.authed(req, "with")
		if !ok {
			return fail
		}
		return d.s.Chat.PMChatStart(auth.uid, d.conn, req.KV["with"])

	case "PM_CHAT_END":
		auth, fail, ok := d.authed(req)
		if !ok {
			return fail
		}
		return d.s.Chat.PMChatEnd(auth.uid, d.conn)

	case "PM_SEND":
		auth, fail, ok := d.authed(req, "to", "content")
		if !ok {
			return fail
		}
		content, err := proto.DecodeContent(req.KV["content"])
		if err != nil {
			return proto.BadRequest("malformed content")
		}
		return d.s.Chat.PMSend(auth.uid, auth.username, req.KV["to"], content)

	case "PM_HISTORY":
		auth, fail, ok := d.authed(req, "with")
		if !ok {
			return fail
		}
		return d.s.Chat.PMHistory(auth.uid, req.KV["with"], parseLimit(req.KV["limit"]))

	case "PM_CONVERSATIONS":
		auth, fail, ok := d.authed(req)
		if !ok {
			return fail
		}
		return d.s.Chat.PMConversations(auth.uid)

	case "GM_CHAT_START":
		auth, groupID, fail, ok := d.authedGroup(req)
		if !ok {
			return fail
		}
		return d.s.Chat.GMChatStart(auth.uid, auth.username, d.conn, groupID)

	case "GM_CHAT_END":
		auth, fail, ok := d.authed(req)
		if !ok {
			return fail
		}
		return d.s.Chat.GMChatEnd(auth.username, d.conn)

	case "GM_SEND":
		auth, groupID, fail, ok := d.authedGroup(req, "content")
		if !ok {
			return fail
		}
		content, err := proto.DecodeContent(req.KV["content"])
		if err != nil {
			return proto.BadRequest("malformed content")
		}
		return d.s.Chat.GMSend(auth.uid, auth.username, d.conn, groupID, content)

	case "GM_HISTORY":
		auth, groupID, fail, ok := d.authedGroup(req)
		if !ok {
			return fail
		}
		return d.s.Chat.GMHistory(auth.uid, groupID, parseLimit(req.KV["limit"]))

	default:
		return proto.BadRequest("unknown verb")
	}
}

// authed authenticates the request and checks the extra required keys in
// one step, the common case for every verb below WHOAMI.
func (d *dispatcher) authed(req *proto.Request, keys ...string) (authContext, proto.Result, bool) {
	auth, fail, ok := d.authenticate(req)
	if !ok {
		return authContext{}, fail, false
	}
	if fail, ok := requireKeys(req, keys...); !ok {
		return authContext{}, fail, false
	}
	return auth, proto.Result{}, true
}

// authedGroup additionally parses the required group_id key.
func (d *dispatcher) authedGroup(req *proto.Request, keys ...string) (authContext, types.GroupID, proto.Result, bool) {
	auth, fail, ok := d.authed(req, append([]string{"group_id"}, keys...)...)
	if !ok {
		return authContext{}, 0, fail, false
	}
	groupID, ok := parseGroupID(req.KV["group_id"])
	if !ok {
		return authContext{}, 0, proto.BadRequest("invalid group_id"), false
	}
	return auth, groupID, proto.Result{}, true
}
