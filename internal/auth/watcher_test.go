package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCredentials(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "creds")
	s := NewSession(SessionConfig{Store: NewFileStore(dir)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchCredentials(ctx, s, dir) }()

	// Another process writing the same directory.
	other := NewFileStore(dir)
	creds := mustCredential(t, "A1", "R1")
	assert.Eventually(t, func() bool {
		_ = other.Save(creds)
		return s.IsAuthenticated()
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, other.Clear())
	assert.Eventually(t, func() bool { return !s.IsAuthenticated() }, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
