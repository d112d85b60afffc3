package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "  whsec_env ")
	t.Setenv("WEBHOOK_CALL_TIMEOUT", "7")
	t.Setenv("SIGNUP_LOCK_TTL", "45s")
	t.Setenv("DATABASE_TYPE", "SQLITE")
	t.Setenv("AUTO_MIGRATE", "off")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("WEBHOOK_RATE_PER_SECOND", "2.5")
	t.Setenv("IDENTITY_API_URL", "https://idp.example.com/")

	cfg := Load()
	assert.Equal(t, "  whsec_env ", cfg.Webhook.Secret, "the HMAC key is used exactly as configured")
	assert.Equal(t, 7*time.Second, cfg.Webhook.CallTimeout)
	assert.Equal(t, 45*time.Second, cfg.Webhook.SignupLockTTL)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.False(t, cfg.AutoMigrate)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.InDelta(t, 2.5, cfg.RateLimit.WebhookRate, 0.0001)
	assert.Equal(t, "https://idp.example.com", cfg.Identity.APIURL)
}

func TestLoadTelemetry(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "legacy:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()
	assert.Equal(t, "collector:4318", cfg.OTLPEndpoint)
	assert.Equal(t, "http", cfg.Telemetry.OtelProtocol)
	assert.True(t, cfg.Telemetry.OtelEnabled)
	assert.Equal(t, "debug", cfg.Telemetry.LogLevel)
	assert.InDelta(t, 0.1, cfg.Telemetry.SamplingRatio, 1e-9)

	cfg.Environment = "production"
	assert.True(t, cfg.IsDevelopment(), "debug level turns on development logging")
	cfg.Telemetry.LogLevel = "info"
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadFallsBackOnBadValues(t *testing.T) {
	t.Setenv("WEBHOOK_CALL_TIMEOUT", "soon")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "many")
	t.Setenv("AUTO_MIGRATE", "maybe")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.Webhook.CallTimeout)
	assert.Equal(t, 20, cfg.DBMaxOpenConn)
	assert.True(t, cfg.AutoMigrate)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Environment: "development",
		DBType:      "postgres",
		Webhook:     WebhookConfig{Secret: "whsec", CallTimeout: time.Second},
	}
	require.NoError(t, valid.Validate())

	noSecret := valid
	noSecret.Webhook.Secret = " "
	assert.ErrorIs(t, noSecret.Validate(), ErrMissingWebhookSecret)

	noTimeout := valid
	noTimeout.Webhook.CallTimeout = 0
	assert.ErrorIs(t, noTimeout.Validate(), ErrInvalidCallTimeout)

	prod := valid
	prod.Environment = "Production"
	assert.ErrorIs(t, prod.Validate(), ErrMissingAdminAPIKey)
	prod.AdminAPIKey = "key"
	assert.NoError(t, prod.Validate())

	badDB := valid
	badDB.DBType = "oracle"
	assert.ErrorIs(t, badDB.Validate(), ErrUnsupportedDatabase)
}

func TestReferralConfigHolderDefaults(t *testing.T) {
	holder, err := NewReferralConfigHolder(Config{
		ConfigPath: t.TempDir(),
		Identity:   IdentityConfig{RedirectURL: "https://app.example.com/welcome"},
	}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, DefaultReferralConfig().Invitation.Subject, got.Invitation.Subject)
	assert.Equal(t, "https://app.example.com/welcome", got.Invitation.RedirectURL)
	assert.Equal(t, time.UTC, got.Location())
}

func TestReferralConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`referrals:
  invitation:
    subject: "Join our partner program"
  statement:
    title: "Partner statement"
  reporting:
    timezone: "Asia/Jakarta"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "referrals.yml"), content, 0o600))

	holder, err := NewReferralConfigHolder(Config{ConfigPath: dir}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, "Join our partner program", got.Invitation.Subject)
	assert.Equal(t, "Partner statement", got.Statement.Title)
	assert.Equal(t, "Asia/Jakarta", got.Location().String())
}

func TestReferralConfigHolderRejectsBadTimezone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "referrals.yml"), []byte(`referrals:
  reporting:
    timezone: "Mars/Olympus"
`), 0o600))

	_, err := NewReferralConfigHolder(Config{ConfigPath: dir}, zap.NewNop())
	assert.Error(t, err)
}

func TestNilHolderReturnsDefaults(t *testing.T) {
	var holder *ReferralConfigHolder
	assert.Equal(t, DefaultReferralConfig(), holder.Get())
}
