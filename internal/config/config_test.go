package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRADOR_DIGEST_CONFIG", "")
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Moogsoft.PageSize)
	assert.Len(t, cfg.Moogsoft.AuditServices, 11)
	assert.Equal(t, 24*time.Hour, cfg.Report.RecentWindow)
	assert.Equal(t, "IST+05:30", cfg.Report.Timezone)
	assert.Equal(t, "/v1/integrations/byoapi/{id}/errors", cfg.Moogsoft.Paths.InboundErrors)
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "digest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`moogsoft:
  baseURL: https://moog.example.com
  apiKey: from-file
  auditServices: ["webhooks", "byoapi"]
report:
  timezone: Europe/Berlin
  workers: 2
mail:
  host: smtp.example.com
  to: ["ops@example.com"]
`), 0o644))

	t.Setenv("MOOGSOFT_API_KEY", "from-env")
	t.Setenv("MAIL_TO", "a@example.com, b@example.com")
	t.Setenv("MIRADOR_DIGEST_CACHE_ENABLED", "1")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "https://moog.example.com", cfg.Moogsoft.BaseURL)
	assert.Equal(t, "from-env", cfg.Moogsoft.APIKey)
	assert.Equal(t, []string{"webhooks", "byoapi"}, cfg.Moogsoft.AuditServices)
	assert.Equal(t, "Europe/Berlin", cfg.Report.Timezone)
	assert.Equal(t, 2, cfg.Report.Workers)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Mail.To)
	assert.True(t, cfg.Cache.Enabled)
	// Defaults survive a partial file.
	assert.Equal(t, "/v1/alerts", cfg.Moogsoft.Paths.Alerts)
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SMTP_PASSWORD=hunter2\n"), 0o600))
	t.Setenv("SMTP_PASSWORD", "")
	require.NoError(t, os.Unsetenv("SMTP_PASSWORD"))

	cfg, err := Load("", envPath)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Mail.Password)

	_, err = Load("", filepath.Join(dir, "missing.env"))
	assert.NoError(t, err, "a missing dotenv file is not an error")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKey")

	cfg.Moogsoft.APIKey = "key"
	require.NoError(t, cfg.Validate())

	cfg.Moogsoft.AuditServices = []string{"webhooks", "webhooks"}
	assert.ErrorContains(t, cfg.Validate(), "twice")

	assert.Error(t, cfg.ValidateMail())
	cfg.Mail.Host = "smtp.example.com"
	cfg.Mail.From = "digest@example.com"
	cfg.Mail.To = []string{"ops@example.com"}
	assert.NoError(t, cfg.ValidateMail())
}
