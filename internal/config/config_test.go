package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("UP_IDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, ChannelServerChan, cfg.NotifyChannel)
	assert.Equal(t, "https://sctapi.ftqq.com", cfg.ServerChanBaseURL)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Empty(t, cfg.UpIDs)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("UP_IDS", " 123, ,456 ")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("SERVERCHAN_BASE_URL", "http://localhost:1234/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, []string{"123", "456"}, cfg.UpIDs)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "http://localhost:1234", cfg.ServerChanBaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown store", env: map[string]string{"STORE_DRIVER": "redis"}},
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{name: "unknown channel", env: map[string]string{"NOTIFY_CHANNEL": "email"}},
		{name: "unknown events driver", env: map[string]string{"EVENTS_DRIVER": "kafka"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, SplitIDs("1,2"))
	assert.Empty(t, SplitIDs(""))
	assert.Empty(t, SplitIDs(" , "))
}
