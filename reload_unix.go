//go:build unix

package main

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"
)

// reexec replaces the process with a fresh copy of the current binary,
// keeping the arguments and environment. It only returns on failure.
func reexec(logger *slog.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	logger.Info("re-executing to apply update", "path", exe)
	return syscall.Exec(exe, os.Args, os.Environ())
}
