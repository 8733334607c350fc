package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/renderforge/kilnd/internal"
	"github.com/renderforge/kilnd/internal/build"
	"github.com/renderforge/kilnd/internal/manifest"
	"github.com/renderforge/kilnd/internal/protocol"
)

// Handles a bake command.
//
// Loads the requested plan and executes the pipeline against the container
// runtime. The plan file is read server-side so validation errors surface
// before any container is created.
func (s *Server) handleBake(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BakeRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	plan, err := manifest.Load(req.Plan)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	result, err := build.Run(ctx, s.runtime, s.puller, s.fetcher, build.Options{
		Plan:      plan,
		Root:      req.Root,
		Output:    req.Output,
		Platforms: req.Platforms,
	})
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.mu.Lock()
	s.bakes++
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.BakeResult{Output: result.Output})
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	bakes := s.bakes
	s.mu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  uptime.String(),
		Bakes:   bakes,
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}
