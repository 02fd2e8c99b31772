//go:build !linux

package nodeapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
)

// Without SO_PEERCRED the caller cannot be identified, so the socket is
// restricted to its owner and the configured group is not consulted.
func applySocketPermissions(socketPath, group string, logger *slog.Logger) {
	if err := os.Chmod(socketPath, 0o600); err != nil {
		logger.Warn("failed to restrict socket", "path", socketPath, "error", err)
	}
	if group != "" {
		logger.Info("socket group ignored on this platform", "group", group)
	}
}

func connContextWithPeerCred(*slog.Logger) func(context.Context, net.Conn) context.Context {
	return nil
}

func wrapControlAuth(next http.Handler, _ string, _ *slog.Logger) http.Handler {
	return next
}
