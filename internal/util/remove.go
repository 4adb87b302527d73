package util

import (
	"log/slog"
	"os"

	"github.com/hansbyte/pairgate/pkg/log"
)

// RemovePath deletes a file or directory tree, best-effort. Cleanup
// failures are logged and swallowed so they never block a response or
// process exit
func RemovePath(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		logger.Warn("failed to remove path", log.Path(path), log.Error(err))
	}
}
