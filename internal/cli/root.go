package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/renderforge/kilnd/internal"
	"github.com/renderforge/kilnd/internal/server"
)

// Represents the root command for the kilnd daemon.
var RootCmd struct {
	Quiet   bool       `short:"q" help:"Suppress informational output."`
	Debug   bool       `short:"d" help:"Enable debug output."`
	Socket  string     `short:"s" help:"Override the default Unix socket path." placeholder:"PATH"`
	Start   StartCmd   `cmd:"" help:"Start the daemon."`
	Bake    BakeCmd    `cmd:"" help:"Bake a plan into an image without the daemon."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("The RenderForge image bake daemon.\n\nBakes runtime images from declarative plans, either as a one-shot command or as a daemon listening on a Unix domain socket."),
		kong.UsageOnError(),
		kong.Vars{
			"version":              internal.VersionString(),
			"containerd_address":   server.DefaultContainerdAddress,
			"containerd_namespace": server.DefaultContainerdNamespace,
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Reconfigures the global logger based on CLI flags.
//
// Flags override the build-time defaults baked in via linker flags.
func configureLogger() {
	debug := RootCmd.Debug || internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()

	internal.SetDebug(debug)
	internal.SetQuiet(quiet)

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else if quiet {
		level = slog.LevelWarn
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
