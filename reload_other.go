//go:build !unix

package main

import (
	"errors"
	"log/slog"
)

func reexec(_ *slog.Logger) error {
	return errors.New("in-place restart is not supported on this platform")
}
