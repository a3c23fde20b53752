package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_SUPERUSER_ID", "")
	t.Setenv("TICKET_DELETION_GRACE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Lifecycle.DeletionGrace)
	assert.Equal(t, time.Second, cfg.Notification.BulkTestDelay)
	assert.Equal(t, "Emergency Services Portal", cfg.Notification.FooterText)
	assert.Empty(t, cfg.Auth.SuperuserID)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_SUPERUSER_ID", "821445289477931069")
	t.Setenv("TICKET_DELETION_GRACE", "2s")
	t.Setenv("NOTIFY_WEBHOOK_TIMEOUT", "not-a-duration")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "821445289477931069", cfg.Auth.SuperuserID)
	assert.Equal(t, 2*time.Second, cfg.Lifecycle.DeletionGrace)
	assert.Equal(t, 10*time.Second, cfg.Notification.WebhookTimeout, "invalid values fall back")
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")

	_, err := Load()
	require.Error(t, err)
}
