package proto

import (
	"strconv"
	"strings"
)

// Request is a parsed client request line: `VERB req_id k=v k=v...`.
type Request struct {
	Verb  string
	ReqID string
	KV    map[string]string
}

// ErrMalformed is returned by Parse when a line has fewer than two tokens.
const errMalformedMsg = "proto: malformed request line"

// Parse tokenizes a request line. Duplicate keys: last wins. A value may
// itself contain '=' (e.g. base64 padding); only the first '=' in a token
// separates key from value.
func Parse(line []byte) (*Request, error) {
	fields := strings.Fields(string(line))
	if len(fields) < 2 {
		return nil, errMalformed{}
	}

	req := &Request{
		Verb:  fields[0],
		ReqID: fields[1],
		KV:    make(map[string]string, len(fields)-2),
	}

	for _, tok := range fields[2:] {
		idx := strings.IndexByte(tok, '=')
		if idx < 0 {
			// Not a valid k=v token; the grammar has no slot for it, ignore.
			continue
		}
		req.KV[tok[:idx]] = tok[idx+1:]
	}

	return req, nil
}

type errMalformed struct{}

func (errMalformed) Error() string { return errMalformedMsg }

// KV is one key=value pair of a reply/push payload.
type KV struct {
	K, V string
}

// F builds a KV pair. Int and Str are convenience wrappers.
func F(k, v string) KV { return KV{K: k, V: v} }

// FInt builds a KV pair from an integer value.
func FInt(k string, v int64) KV { return KV{K: k, V: strconv.FormatInt(v, 10)} }

func joinPayload(fields []KV) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for i, kv := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(kv.K)
		b.WriteByte('=')
		b.WriteString(kv.V)
	}
	return b.String()
}

// OKLine renders a successful reply: `OK req_id [payload]`.
func OKLine(reqID string, fields ...KV) string {
	line := "OK " + reqID
	if p := joinPayload(fields); p != "" {
		line += " " + p
	}
	return line
}

// ErrLine renders an error reply: `ERR req_id <code> [<reason>]`.
func ErrLine(reqID string, code int, reason string) string {
	line := "ERR " + reqID + " " + strconv.Itoa(code)
	if reason != "" {
		line += " " + reason
	}
	return line
}

// PushLine renders a server-originated push: `PUSH subject [payload]`. The
// request-id slot carries the subject token instead of echoing a req_id.
func PushLine(subject string, fields ...KV) string {
	line := "PUSH " + subject
	if p := joinPayload(fields); p != "" {
		line += " " + p
	}
	return line
}
