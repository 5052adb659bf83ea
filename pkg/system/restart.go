// Package system holds the process restart primitive behind /restart.
package system

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// RestartDelay gives the HTTP response time to reach the client.
const RestartDelay = time.Second

// Restarter restarts the agent or the device it runs on.
type Restarter interface {
	Restart(ctx context.Context) error
}

// ExitRestarter exits the process and relies on the container or service
// manager to start it again.
type ExitRestarter struct {
	Code int
	// Exit defaults to os.Exit.
	Exit func(code int)
}

func (r ExitRestarter) Restart(ctx context.Context) error {
	exit := r.Exit
	if exit == nil {
		exit = os.Exit
	}
	slog.Warn("Exiting for restart", "code", r.Code)
	exit(r.Code)
	return nil
}

// Fallback tries Primary and falls back to Secondary when it fails.
type Fallback struct {
	Primary   Restarter
	Secondary Restarter
}

func (f Fallback) Restart(ctx context.Context) error {
	err := f.Primary.Restart(ctx)
	if err == nil {
		return nil
	}
	slog.Error("Restart failed, using fallback", "error", err)
	return f.Secondary.Restart(ctx)
}

// Schedule restarts after delay on its own goroutine. The returned channel
// receives the restart result, for callers that survive it.
func Schedule(r Restarter, delay time.Duration) <-chan error {
	done := make(chan error, 1)
	go func() {
		time.Sleep(delay)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := r.Restart(ctx)
		if err != nil {
			slog.Error("Restart failed", "error", err)
		}
		done <- err
	}()
	return done
}
