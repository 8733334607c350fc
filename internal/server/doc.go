// Package server implements the kilnd daemon.
//
// The daemon listens on a Unix domain socket for JSON-encoded commands
// from the kilnd CLI. Each connection carries a single request-response
// exchange: the client sends a newline-delimited JSON envelope, the
// server dispatches the command, and writes the result back before
// closing the connection.
//
// Supported commands are baking a plan, querying daemon status, and
// initiating shutdown. Bake commands are delegated to the build package,
// which in turn uses the runtime package for container operations against
// containerd.
//
// Example usage:
//
//	srv, err := server.New(server.Config{
//	    ContainerdAddress:   "/run/containerd/containerd.sock",
//	    ContainerdNamespace: "kilnd",
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//
//	srv.Wait()
package server
