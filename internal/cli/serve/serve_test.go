package serve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

func TestRun_ReturnsServeError(t *testing.T) {
	boom := errors.New("listen failed")
	shutdownCalled := false

	err := Run(context.Background(),
		func() error { return boom },
		func(context.Context) error { shutdownCalled = true; return nil },
	)
	assert.ErrorIs(t, err, boom)
	assert.False(t, shutdownCalled)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx,
			func() error { <-stopped; return nil },
			func(context.Context) error { close(stopped); return nil },
		)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ShutdownError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("drain failed")
	err := Run(ctx,
		func() error { select {} },
		func(context.Context) error { return boom },
	)
	assert.ErrorIs(t, err, boom)
}

func TestRunDaemon(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "run", "tablero.sock")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- RunDaemon(ctx, socketPath, "") }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	// fails the test unless the daemon accepts connections
	testutil.SetupTestClient(t, socketPath)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
