package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/auth"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/config"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/tasks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitCodeError, exitCode(errors.New("boom")))
	assert.Equal(t, ExitCodeAuthRequired, exitCode(fmt.Errorf("list: %w", auth.ErrNotAuthenticated)))
	assert.Equal(t, ExitCodeAuthRequired, exitCode(fmt.Errorf("%w: 401", auth.ErrRefreshFailed)))
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	cfg := config.DefaultConfig()
	cfg.LogLevel = "warn"
	require.NoError(t, setupLogging(cfg))
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	cfg.Debug = true
	require.NoError(t, setupLogging(cfg))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	cfg.Debug = false
	cfg.LogLevel = "loud"
	assert.Error(t, setupLogging(cfg))
}

func TestNewApp_RequireLogin(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CredentialsDir = t.TempDir()

	a, err := newAppWithOpener(cfg, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, a.requireLogin(), auth.ErrNotAuthenticated)
}

func TestRenderTasks_Empty(t *testing.T) {
	var out bytes.Buffer
	day := tasks.NewDay(nil, nil, time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local))

	renderTasks(&out, day)

	assert.Contains(t, out.String(), "No tasks for 2024-05-01")
}
