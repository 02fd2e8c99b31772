//go:build !linux

package backend

import (
	"context"
	"errors"
	"log/slog"
)

// ErrKernelUnsupported is returned on platforms without a kernel backend.
var ErrKernelUnsupported = errors.New("backend: kernel backend is only available on linux")

// Kernel is unavailable on this platform.
type Kernel struct{}

// NewKernel always fails on this platform.
func NewKernel(Network, *slog.Logger) (*Kernel, error) {
	return nil, ErrKernelUnsupported
}

func (*Kernel) Start(context.Context, string, string) error { return ErrKernelUnsupported }
func (*Kernel) Set(context.Context, string) error           { return ErrKernelUnsupported }
func (*Kernel) Get(context.Context) (string, error)         { return "", ErrKernelUnsupported }
func (*Kernel) Stop() error                                 { return nil }
