package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SIGNING_KEY", testSigningKey)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "auth-service", cfg.App.Name)
	require.Equal(t, 8080, cfg.App.Port)
	require.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	require.Equal(t, 168*time.Hour, cfg.JWT.RefreshTokenTTL)
	require.Equal(t, 5*time.Minute, cfg.JWT.MFATokenTTL)
	require.Equal(t, 15*time.Minute, cfg.PasswordReset.TokenTTL)
	require.Equal(t, "auth:mfa_challenge", cfg.Redis.MFAChallengePrefix)
	require.Empty(t, cfg.Kafka.Brokers)
	require.True(t, cfg.Reaper.Enabled)
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SIGNING_KEY", testSigningKey)
	t.Setenv("AUTH_APP_PORT", "9191")
	t.Setenv("AUTH_JWT_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("AUTH_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("AUTH_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9191, cfg.App.Port)
	require.Equal(t, 5*time.Minute, cfg.JWT.AccessTokenTTL)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	require.False(t, cfg.RateLimit.Enabled)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.yaml")
	contents := []byte("jwt:\n  signing_key: " + testSigningKey + "\n  issuer: file-issuer\npassword_reset:\n  token_ttl: 10m\n")
	require.NoError(t, os.WriteFile(path, contents, 0o600))
	t.Setenv("AUTH_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "file-issuer", cfg.JWT.Issuer)
	require.Equal(t, 10*time.Minute, cfg.PasswordReset.TokenTTL)
}

func TestLoadRejectsMissingSigningKey(t *testing.T) {
	t.Setenv("AUTH_JWT_SIGNING_KEY", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt.signing_key")
}

func TestValidateRejectsInvertedTokenLifetimes(t *testing.T) {
	cfg := AppConfig{
		App:           AppSettings{Port: 8080},
		JWT:           JWTSettings{SigningKey: testSigningKey, AccessTokenTTL: time.Hour, RefreshTokenTTL: time.Minute, MFATokenTTL: time.Minute},
		PasswordReset: PasswordResetSettings{TokenTTL: time.Minute},
	}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "shorter than")
}
