package proto

import "testing"

func TestParseBasic(t *testing.T) {
	req, err := Parse([]byte("PM_SEND 7 to=bob content=aGk="))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if req.Verb != "PM_SEND" || req.ReqID != "7" {
		t.Fatalf("got verb=%q reqid=%q", req.Verb, req.ReqID)
	}
	if req.KV["to"] != "bob" {
		t.Fatalf("to=%q", req.KV["to"])
	}
	if req.KV["content"] != "aGk=" {
		t.Fatalf("content=%q, expected base64 padding preserved", req.KV["content"])
	}
}

func TestParseDuplicateKeyLastWins(t *testing.T) {
	req, err := Parse([]byte("LOGIN 1 username=alice username=bob"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if req.KV["username"] != "bob" {
		t.Fatalf("expected last value to win, got %q", req.KV["username"])
	}
}

func TestParseTooFewTokens(t *testing.T) {
	if _, err := Parse([]byte("PING")); err == nil {
		t.Fatalf("expected error for missing req_id")
	}
}

func TestOKLineNoPayload(t *testing.T) {
	if got := OKLine("1"); got != "OK 1" {
		t.Fatalf("got %q", got)
	}
}

func TestOKLineWithPayload(t *testing.T) {
	got := OKLine("1", FInt("user_id", 42))
	if got != "OK 1 user_id=42" {
		t.Fatalf("got %q", got)
	}
}

func TestErrLine(t *testing.T) {
	got := ErrLine("3", CodeConflict, "username taken")
	if got != "ERR 3 409 username taken" {
		t.Fatalf("got %q", got)
	}
}

func TestPushLine(t *testing.T) {
	got := PushLine("PM", F("from", "alice"), F("content", "aGk="))
	if got != "PUSH PM from=alice content=aGk=" {
		t.Fatalf("got %q", got)
	}
}
