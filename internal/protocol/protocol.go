package protocol

import (
	"encoding/json"
	"fmt"
)

// A command name carried in the envelope of every message.
type Command string

const (
	CmdBake     Command = "bake"     // Bake a plan into an image.
	CmdStatus   Command = "status"   // Query daemon status.
	CmdShutdown Command = "shutdown" // Request daemon shutdown.
	CmdOK       Command = "ok"       // Successful response.
	CmdError    Command = "error"    // Failed response.
)

// The outer framing of every message: a command name and a raw payload.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Asks the daemon to bake a plan.
type BakeRequest struct {
	Plan      string   `json:"plan"`                // Path to the plan file.
	Root      string   `json:"root"`                // Build root for resolving copy sources.
	Output    string   `json:"output"`              // Directory for the exported image.
	Platforms []string `json:"platforms,omitempty"` // Target platforms. Empty uses the host.
}

// Reports a successful bake.
type BakeResult struct {
	Output string `json:"output"` // Directory containing the exported image.
}

// Reports daemon status.
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Bakes   int    `json:"bakes"`
}

// Reports a failed command.
type ErrorResult struct {
	Message string `json:"message"`
}

// Serializes a command and payload into an envelope.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncode, err)
		}
		env.Payload = raw
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// Parses an envelope, returning the command and the raw payload.
func Decode(data []byte) (Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if env.Command == "" {
		return Envelope{}, nil, fmt.Errorf("%w: missing command", ErrDecode)
	}
	return env, env.Payload, nil
}

// Parses a raw payload into a concrete message type.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var msg T
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrDecode)
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &msg, nil
}
