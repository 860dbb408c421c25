package source

import (
	"bytes"
	"errors"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"
)

// ErrEmptyPayload means the upstream answered but carried no data,
// usually a stale ut token or a rate-limit soft block.
var ErrEmptyPayload = errors.New("upstream returned empty payload")

// StripJSONP unwraps `callback({...});` into the inner JSON. Payloads
// that are not JSONP pass through untouched.
func StripJSONP(b []byte) []byte {
	start := bytes.IndexByte(b, '(')
	end := bytes.LastIndexByte(b, ')')
	if start < 0 || end <= start {
		return b
	}
	// only unwrap when the prefix looks like an identifier, otherwise a
	// plain JSON payload containing parens would be mangled
	prefix := bytes.TrimSpace(b[:start])
	for _, c := range prefix {
		if !(c == '_' || c == '.' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return b
		}
	}
	return b[start+1 : end]
}

// DecodeJSON strips a JSONP wrapper and validates the JSON, running it
// through jsonrepair when the upstream ships malformed output (single
// quotes, trailing commas, truncated tails have all been observed).
func DecodeJSON(raw []byte) ([]byte, error) {
	b := bytes.TrimSpace(StripJSONP(raw))
	if len(b) == 0 {
		return nil, ErrEmptyPayload
	}
	if gjson.ValidBytes(b) {
		return b, nil
	}
	repaired, err := jsonrepair.JSONRepair(string(b))
	if err != nil {
		return nil, errors.New("payload is not valid JSON and could not be repaired")
	}
	rb := []byte(repaired)
	if !gjson.ValidBytes(rb) {
		return nil, errors.New("repaired payload still invalid")
	}
	return rb, nil
}
