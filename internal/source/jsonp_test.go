package source

import (
	"errors"
	"testing"
)

func TestStripJSONP(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`cb({"a":1});`, `{"a":1}`},
		{`jQuery_12345({"a":1})`, `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{`{"a":"(nested)"}`, `{"a":"(nested)"}`},
	}
	for _, c := range cases {
		if got := string(StripJSONP([]byte(c.in))); got != c.want {
			t.Fatalf("StripJSONP(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecodeJSONValid(t *testing.T) {
	out, err := DecodeJSON([]byte(`cb({"data":{"total":2}})`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != `{"data":{"total":2}}` {
		t.Fatalf("out = %s", out)
	}
}

func TestDecodeJSONRepairsMalformed(t *testing.T) {
	// single quotes and trailing comma, both seen in the wild
	out, err := DecodeJSON([]byte(`{'a': 1, 'b': [1, 2,],}`))
	if err != nil {
		t.Fatalf("decode malformed: %v", err)
	}
	if string(out) == "" {
		t.Fatalf("empty repaired output")
	}
}

func TestDecodeJSONEmpty(t *testing.T) {
	if _, err := DecodeJSON([]byte("  ")); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}
}
