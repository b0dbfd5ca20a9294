package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/api/dto"
	"github.com/spec-kit/grievance-portal/internal/clock"
	"github.com/spec-kit/grievance-portal/internal/config"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

func newTestPortal(t *testing.T, out *bytes.Buffer) *portal {
	t.Helper()
	return newTestPortalAt(t, out, "http://127.0.0.1:1/api/grievances")
}

func newTestPortalAt(t *testing.T, out *bytes.Buffer, baseURL string) *portal {
	t.Helper()
	kv := memory.New()
	t.Cleanup(func() { _ = kv.Close() })
	cfg := config.PortalConfig{
		BaseURL:     baseURL,
		IdleTimeout: time.Minute,
		HTTPTimeout: time.Second,
		AllowReopen: true,
	}
	return newPortal(cfg, kv, out, zap.NewNop())
}

func TestShellRunsCommandsUntilExit(t *testing.T) {
	var out bytes.Buffer
	p := newTestPortal(t, &out)

	input := strings.NewReader("\nwhoami\nbogus\nlogout\nexit\nwhoami\n")
	require.NoError(t, p.shell(context.Background(), input))

	text := out.String()
	assert.Contains(t, text, "error [UNAUTHORIZED]: not signed in")
	assert.Contains(t, text, `unknown command "bogus"`)
	assert.Contains(t, text, "signed out")
	assert.Equal(t, 1, strings.Count(text, "not signed in"))
}

func TestDispatchValidatesArguments(t *testing.T) {
	var out bytes.Buffer
	p := newTestPortal(t, &out)
	ctx := context.Background()

	err := p.dispatch(ctx, "history", []string{"abc"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	err = p.dispatch(ctx, "update", []string{"3", "--status", "closed"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	err = p.dispatch(ctx, "list", nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, apperrors.NewValidationError("invalid grievance", map[string]any{"category": "grievance_category"}))
	assert.Equal(t, "error [VALIDATION_FAILED]: invalid grievance\n  category: grievance_category\n", buf.String())

	buf.Reset()
	reportError(&buf, errors.New("boom"))
	assert.Equal(t, "error: boom\n", buf.String())
}

func loginServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/grievances/login" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": dto.AuthResponse{
			User:  dto.IdentityResponse{ID: "stu-1", Name: "Asha", Email: "asha@uni.edu", Role: "STUDENT"},
			Token: "token-stu-1",
		}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestShellIdleWindowRestartsAfterSignIn(t *testing.T) {
	var out bytes.Buffer
	p := newTestPortalAt(t, &out, loginServer(t).URL+"/api/grievances")
	clk := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	p.clk = clk
	ctx := context.Background()

	watcher := p.newIdleWatcher()
	defer watcher.Close()

	login := "login --email asha@uni.edu --password secret1"
	assert.False(t, p.runLine(ctx, login, watcher))
	_, ok := p.session.Current()
	require.True(t, ok)

	clk.Advance(p.cfg.IdleTimeout)
	_, ok = p.session.Current()
	assert.False(t, ok)

	assert.False(t, p.runLine(ctx, login, watcher))
	_, ok = p.session.Current()
	require.True(t, ok)

	clk.Advance(10 * time.Minute)
	_, ok = p.session.Current()
	assert.False(t, ok)
	assert.Equal(t, 2, strings.Count(out.String(), "session expired after inactivity"))
}
