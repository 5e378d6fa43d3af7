package chat

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchPoolsReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("errors:\n  - e1\n"), 0o600))

	pools, err := LoadPools(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, WatchPools(ctx, path, pools, nil))

	require.NoError(t, os.WriteFile(path, []byte("errors:\n  - e2\n  - e3\n"), 0o600))
	assert.Eventually(t, func() bool {
		return len(pools.Errors.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchPoolsMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "pools.yaml")
	assert.Error(t, WatchPools(context.Background(), path, DefaultPools(nil), nil))
}
