package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvConfigPrefixing(t *testing.T) {
	t.Setenv("DUTYRECON_S3_BUCKET", "duty-artifacts")
	ec := NewEnvConfig("dutyrecon")
	assert.Equal(t, "duty-artifacts", ec.GetString("S3_BUCKET", ""))
	assert.Equal(t, "fallback", ec.GetString("MISSING", "fallback"))
}

func TestEnvConfigTypes(t *testing.T) {
	t.Setenv("APP_COUNT", "42")
	t.Setenv("APP_ENABLED", "true")
	t.Setenv("APP_WAIT", "90s")
	ec := NewEnvConfig("app")
	assert.Equal(t, 42, ec.GetInt("COUNT", 0))
	assert.Equal(t, 7, ec.GetInt("BAD", 7))
	assert.True(t, ec.GetBool("ENABLED", false))
	assert.Equal(t, 90*time.Second, ec.GetDuration("WAIT", 0))
}

func TestLoadRequiresObjectStoreSettings(t *testing.T) {
	_, err := Load()
	require.Error(t, err)

	t.Setenv("DUTYRECON_S3_BUCKET", "duty-artifacts")
	t.Setenv("DUTYRECON_S3_REGION", "us-east-1")
	t.Setenv("DUTYRECON_S3_ACCESS_KEY", "AKIA123")
	t.Setenv("DUTYRECON_S3_SECRET_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "duty-artifacts", cfg.Bucket)
	assert.Equal(t, "netchb-duty", cfg.Prefix)
	assert.Equal(t, time.Hour, cfg.PresignTTL)
	assert.Equal(t, "gs", cfg.GSBinary)
}
