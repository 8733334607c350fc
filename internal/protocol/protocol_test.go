package protocol

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := Encode(CmdBake, &BakeRequest{
		Plan:   "plans/web.yaml",
		Root:   "/src/app",
		Output: "dist",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != CmdBake {
		t.Fatalf("command = %q, want %q", env.Command, CmdBake)
	}

	req, err := DecodePayload[BakeRequest](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if req.Plan != "plans/web.yaml" || req.Root != "/src/app" || req.Output != "dist" {
		t.Fatalf("request = %+v", req)
	}
}

func TestEncodeNilPayload(t *testing.T) {
	data, err := Encode(CmdShutdown, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != CmdShutdown {
		t.Fatalf("command = %q, want %q", env.Command, CmdShutdown)
	}
	if len(payload) != 0 {
		t.Fatalf("payload = %q, want empty", payload)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "nope"},
		{name: "missing command", input: `{"payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.input))
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestDecodePayloadMissing(t *testing.T) {
	if _, err := DecodePayload[BakeRequest](nil); !errors.Is(err, ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
}
