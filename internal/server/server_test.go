package server

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestContextWithDisconnect(t *testing.T) {
	pr, pw := io.Pipe()

	ctx, cancel := contextWithDisconnect(context.Background(), pr)
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before the peer disconnected")
	case <-time.After(20 * time.Millisecond):
	}

	pw.Close()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after the peer disconnected")
	}
}
