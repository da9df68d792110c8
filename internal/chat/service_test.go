package chat

import (
	"strconv"
	"testing"

	"github.com/chatline/linechatd/internal/auth"
	"github.com/chatline/linechatd/internal/metrics"
	"github.com/chatline/linechatd/internal/proto"
	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/store/memstore"
	"github.com/chatline/linechatd/internal/types"
)

func newTestService(t *testing.T) (*Service, *session.Registry) {
	t.Helper()

	st := memstore.New()
	if err := st.Open(""); err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	signer, err := auth.NewTokenSigner([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	sessions := session.NewRegistry(signer)
	svc := NewService(st, sessions, metrics.New())
	return svc, sessions
}

func mustRegister(t *testing.T, svc *Service, username, password, email string) {
	t.Helper()
	r := svc.Register(username, password, email)
	if !r.OK {
		t.Fatalf("register %s: %d %s", username, r.Code, r.Reason)
	}
}

func mustParseInt(t *testing.T, s string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		t.Fatalf("parse int %q: %v", s, err)
	}
	return n
}

func groupFromID(id int64) types.GroupID { return types.GroupID(id) }

func fieldInt(r proto.Result, key string) int64 {
	for _, kv := range r.Fields {
		if kv.K == key {
			n, _ := strconv.ParseInt(kv.V, 10, 64)
			return n
		}
	}
	return 0
}
