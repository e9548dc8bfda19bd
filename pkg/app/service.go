package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/kardianos/service"
)

// ServiceName is the OS service name used by the service commands.
const ServiceName = "aether"

// ServiceActions lists the control actions accepted by ControlService.
var ServiceActions = service.ControlAction[:]

// program adapts RunContext to service.Interface.
type program struct {
	params RunParams

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*program)(nil)

// Start must not block: the service manager waits on it.
func (p *program) Start(service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- RunContext(ctx, p.params) }()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

// NewService returns the OS service running aether with params. A relative
// ConfigPath is made absolute, since services start in another directory.
func NewService(params RunParams) (service.Service, error) {
	args := []string{"start"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("app: resolving config path: %w", err)
		}
		params.ConfigPath = abs
		args = append(args, "--config", abs)
	}
	if params.DataDir != "" {
		abs, err := filepath.Abs(params.DataDir)
		if err != nil {
			return nil, fmt.Errorf("app: resolving data dir: %w", err)
		}
		params.DataDir = abs
		args = append(args, "--data-dir", abs)
	}
	if params.LogLevel <= slog.LevelDebug {
		args = append(args, "--debug")
	}

	svc, err := service.New(&program{params: params}, &service.Config{
		Name:        ServiceName,
		DisplayName: "Aether",
		Description: "Team Aether AI assistant web chat.",
		Arguments:   args,
	})
	if err != nil {
		return nil, fmt.Errorf("app: creating service: %w", err)
	}
	return svc, nil
}

// ControlService runs one of ServiceActions ("install", "start", ...).
func ControlService(params RunParams, action string) error {
	svc, err := NewService(params)
	if err != nil {
		return err
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("app: service %s: %w", action, err)
	}
	return nil
}

// ServiceStatus reports the installed service state.
func ServiceStatus(params RunParams) (string, error) {
	svc, err := NewService(params)
	if err != nil {
		return "", err
	}
	st, err := svc.Status()
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed", nil
	}
	if err != nil {
		return "", fmt.Errorf("app: service status: %w", err)
	}
	switch st {
	case service.StatusRunning:
		return "running", nil
	case service.StatusStopped:
		return "stopped", nil
	default:
		return "unknown", nil
	}
}

// RunService runs aether under the OS service manager. It blocks until the
// manager stops the service.
func RunService(params RunParams) error {
	svc, err := NewService(params)
	if err != nil {
		return err
	}
	return svc.Run()
}
