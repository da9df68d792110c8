package server

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/chatline/linechatd/internal/auth"
	"github.com/chatline/linechatd/internal/chat"
	"github.com/chatline/linechatd/internal/metrics"
	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/store/memstore"
)

func newTestServer(t *testing.T) (*Server, string) {
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
	reaper := session.NewReaper(sessions, 100*time.Millisecond, 20*time.Millisecond)
	svc := chat.NewService(st, sessions, metrics.New())
	srv := New(svc, sessions, svc.Metrics, reaper)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv.ln = ln
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handle(c)
		}
	}()
	t.Cleanup(func() { srv.Shutdown() })

	return srv, ln.Addr().String()
}

type testClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return &testClient{conn: c, r: bufio.NewReader(c)}
}

func (c *testClient) send(line string) {
	c.conn.Write([]byte(line + "\r\n"))
}

func (c *testClient) readLine(t *testing.T) string {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func fieldValue(line, key string) string {
	for _, tok := range strings.Fields(line) {
		if strings.HasPrefix(tok, key+"=") {
			return strings.TrimPrefix(tok, key+"=")
		}
	}
	return ""
}

func TestPing(t *testing.T) {
	_, addr := newTestServer(t)
	c := dial(t, addr)
	defer c.conn.Close()

	c.send("PING 1")
	reply := c.readLine(t)
	if reply != "OK 1 pong=1" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestFramingSplitAcrossWrites(t *testing.T) {
	_, addr := newTestServer(t)
	c := dial(t, addr)
	defer c.conn.Close()

	for _, b := range []byte("PING 1\r\n") {
		c.conn.Write([]byte{b})
	}
	reply := c.readLine(t)
	if reply != "OK 1 pong=1" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestMultiLoginBlocked(t *testing.T) {
	_, addr := newTestServer(t)
	c1 := dial(t, addr)
	defer c1.conn.Close()
	c2 := dial(t, addr)
	defer c2.conn.Close()

	c1.send("REGISTER 1 username=alice password=pass1234 email=a@b.com")
	if reply := c1.readLine(t); !strings.HasPrefix(reply, "OK 1") {
		t.Fatalf("register: %q", reply)
	}

	c1.send("LOGIN 2 username=alice password=pass1234")
	reply := c1.readLine(t)
	if !strings.HasPrefix(reply, "OK 2") {
		t.Fatalf("c1 login: %q", reply)
	}
	token1 := fieldValue(reply, "token")
	if token1 == "" {
		t.Fatalf("expected token in reply: %q", reply)
	}

	c2.send("LOGIN 3 username=alice password=pass1234")
	reply = c2.readLine(t)
	if !strings.HasPrefix(reply, "ERR 3 409") {
		t.Fatalf("expected conflict, got %q", reply)
	}

	c1.conn.Close()
	time.Sleep(50 * time.Millisecond)

	c2.send("LOGIN 4 username=alice password=pass1234")
	reply = c2.readLine(t)
	if !strings.HasPrefix(reply, "OK 4") {
		t.Fatalf("expected c2 login to succeed after c1 closed, got %q", reply)
	}
}

func TestIdleExpiry(t *testing.T) {
	_, addr := newTestServer(t)
	c := dial(t, addr)
	defer c.conn.Close()

	c.send("REGISTER 1 username=alice password=pass1234 email=a@b.com")
	c.readLine(t)
	c.send("LOGIN 2 username=alice password=pass1234")
	token := fieldValue(c.readLine(t), "token")

	time.Sleep(200 * time.Millisecond)

	c.send("WHOAMI 3 token=" + token)
	reply := c.readLine(t)
	if !strings.HasPrefix(reply, "ERR 3 401") {
		t.Fatalf("expected expired session to be unauthorized, got %q", reply)
	}
}

func TestPMPushEligibility(t *testing.T) {
	_, addr := newTestServer(t)
	alice := dial(t, addr)
	defer alice.conn.Close()
	bob := dial(t, addr)
	defer bob.conn.Close()

	alice.send("REGISTER 1 username=alice password=pass1234 email=a@b.com")
	alice.readLine(t)
	bob.send("REGISTER 1 username=bob password=pass1234 email=b@b.com")
	bob.readLine(t)

	alice.send("LOGIN 2 username=alice password=pass1234")
	aliceToken := fieldValue(alice.readLine(t), "token")
	bob.send("LOGIN 2 username=bob password=pass1234")
	bobToken := fieldValue(bob.readLine(t), "token")

	alice.send("PM_CHAT_START 3 token=" + aliceToken + " with=bob")
	alice.readLine(t)
	bob.send("PM_CHAT_START 3 token=" + bobToken + " with=alice")
	bob.readLine(t)

	alice.send("PM_SEND 4 token=" + aliceToken + " to=bob content=aGk=")
	if reply := alice.readLine(t); !strings.HasPrefix(reply, "OK 4") {
		t.Fatalf("pm send: %q", reply)
	}

	push := bob.readLine(t)
	if !strings.HasPrefix(push, "PUSH PM ") {
		t.Fatalf("expected PUSH PM, got %q", push)
	}
	if fieldValue(push, "from") != "alice" || fieldValue(push, "content") != "aGk=" {
		t.Fatalf("unexpected push payload: %q", push)
	}
}
