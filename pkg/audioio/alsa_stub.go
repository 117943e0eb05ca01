//go:build !linux

package audioio

import (
	"errors"
	"log/slog"
)

// newALSASource returns an error on non-Linux platforms.
func newALSASource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, errors.New("alsa: backend only available on linux")
}

// newALSASink returns an error on non-Linux platforms.
func newALSASink(cfg Config, logger *slog.Logger) (Sink, error) {
	return nil, errors.New("alsa: backend only available on linux")
}
