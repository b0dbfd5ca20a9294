package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/client"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

func runShell(ctx context.Context, p *portal, _ []string) error {
	return p.shell(ctx, os.Stdin)
}

// shell runs commands line by line. Every line counts as activity; a quiet
// session is signed out after the idle timeout.
func (p *portal) shell(ctx context.Context, in io.Reader) error {
	watcher := p.newIdleWatcher()
	defer watcher.Close()

	scanner := bufio.NewScanner(in)
	fmt.Fprint(p.out, "portal> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if done := p.runLine(ctx, scanner.Text(), watcher); done {
			return nil
		}
		fmt.Fprint(p.out, "portal> ")
	}
	if err := scanner.Err(); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("read input: %w", err))
	}
	return nil
}

func (p *portal) newIdleWatcher() *client.IdleWatcher {
	return client.NewIdleWatcher(p.clk, p.cfg.IdleTimeout, p.session, func(err error) {
		if err != nil {
			p.logger.Warn("idle sign out failed", zap.Error(err))
		}
		fmt.Fprintln(p.out, "\nsession expired after inactivity, please sign in again")
	})
}

// runLine executes one shell line and reports whether the shell should
// exit. A successful sign-in starts a new idle window.
func (p *portal) runLine(ctx context.Context, line string, watcher *client.IdleWatcher) bool {
	watcher.Touch(client.EventKeyPress)

	fields := strings.Fields(line)
	switch {
	case len(fields) == 0:
	case fields[0] == "exit" || fields[0] == "quit":
		return true
	case fields[0] == "shell":
		fmt.Fprintln(p.out, "already in the shell")
	case fields[0] == "help":
		printUsage(p.out)
	default:
		if err := p.dispatch(ctx, fields[0], fields[1:]); err != nil {
			reportError(p.out, err)
			return false
		}
		if fields[0] == "login" || fields[0] == "register" {
			watcher.Rearm()
		}
	}
	return false
}
