package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracelight/dataset-cli/internal/config"
	"github.com/tracelight/dataset-cli/internal/notify"
)

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "oracle"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
	}}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, st.Close())
}

func TestInitNotifier_DefaultsToLog(t *testing.T) {
	n, stop := initNotifier(config.NotifyConfig{})
	defer stop()

	_, ok := n.(notify.LogNotifier)
	assert.True(t, ok)
}

func TestInitNotifier_Webhook(t *testing.T) {
	n, stop := initNotifier(config.NotifyConfig{WebhookURL: "http://localhost:0/hook"})

	_, ok := n.(*notify.Webhook)
	assert.True(t, ok)
	stop()
}

func TestTimeoutSecs(t *testing.T) {
	assert.Equal(t, 10*time.Second, timeoutSecs(10))
}
