package cli

import (
	"context"
	"log/slog"

	"github.com/renderforge/kilnd/internal/server"
)

// Represents the 'kilnd start' command.
type StartCmd struct {
	ContainerdAddress   string `help:"Containerd socket address." default:"${containerd_address}" placeholder:"PATH"`
	ContainerdNamespace string `help:"Containerd namespace for images and containers." default:"${containerd_namespace}"`
}

// Executes the start command.
//
// Starts the server on a Unix domain socket and blocks until the context
// is cancelled (e.g. via SIGINT or SIGTERM) or a shutdown command arrives.
func (c *StartCmd) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath:          RootCmd.Socket,
		ContainerdAddress:   c.ContainerdAddress,
		ContainerdNamespace: c.ContainerdNamespace,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("kilnd is running")

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		srv.Stop()
	}()

	srv.Wait()
	return nil
}
