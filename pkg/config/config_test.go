package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPEM = "-----BEGIN KEY-----\\nabc\\n-----END KEY-----"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_PRIVATE_KEY", testPEM)
	t.Setenv("JWT_PUBLIC_KEY", testPEM)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 5, cfg.Auth.LoginMaxFailures)
	assert.Equal(t, 60*time.Second, cfg.Auth.LoginFailureWindow)
	assert.Equal(t, 60*time.Second, cfg.Cache.ListTTL)
	assert.True(t, cfg.Auth.LocalEnabled)
	assert.False(t, cfg.SSO.Enabled)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", cfg.App.DefaultTenantID.String())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "-----BEGIN KEY-----\nabc\n-----END KEY-----", cfg.Auth.JWTPrivateKey)
	assert.False(t, cfg.AuditExport.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("REFRESH_TOKEN_EXPIRE_DAYS", "1")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("AUTH_SSO_ENABLED", "1")
	t.Setenv("OKTA_DOMAIN", "acme.okta.com/")
	t.Setenv("LOG_FORMAT", "Console")
	t.Setenv("AUDIT_EXPORT_S3_BUCKET", "audit")
	t.Setenv("AUDIT_EXPORT_S3_ACCESS_KEY", "minio")
	t.Setenv("AUDIT_EXPORT_S3_SECRET_KEY", "minio-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.SSO.Enabled)
	assert.Equal(t, "https://acme.okta.com/oauth2/default", cfg.SSO.OktaIssuer())
	assert.Equal(t, "console", cfg.Observability.LogFormat)
	assert.True(t, cfg.AuditExport.Enabled())
	assert.Equal(t, "minio", cfg.AuditExport.AccessKey)
	assert.Equal(t, "minio-secret", cfg.AuditExport.SecretKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing keys",
			env:     map[string]string{"JWT_PRIVATE_KEY": "", "JWT_PUBLIC_KEY": ""},
			wantErr: "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required",
		},
		{
			name:    "unsupported algorithm",
			env:     map[string]string{"JWT_ALGORITHM": "HS256"},
			wantErr: "unsupported JWT_ALGORITHM",
		},
		{
			name:    "bad log format",
			env:     map[string]string{"LOG_FORMAT": "xml"},
			wantErr: "invalid LOG_FORMAT",
		},
		{
			name:    "bad default tenant",
			env:     map[string]string{"DEFAULT_TENANT_ID": "not-a-uuid"},
			wantErr: "invalid DEFAULT_TENANT_ID",
		},
		{
			name:    "port collision",
			env:     map[string]string{"PORT": "9090", "METRICS_PORT": "9090"},
			wantErr: "metrics port must be different",
		},
		{
			name:    "half an s3 key pair",
			env:     map[string]string{"AUDIT_EXPORT_S3_ACCESS_KEY": "minio"},
			wantErr: "must be set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "notanint")
	t.Setenv("TEST_BOOL", "TRUE")
	t.Setenv("TEST_DURATION", "90s")

	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, "fallback", getEnv("TEST_UNSET_VALUE", "fallback"))
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("existing env wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("APPR_DOTENV_A=file\nAPPR_DOTENV_B=file\n"), 0o600))
		t.Setenv("APPR_DOTENV_A", "env")
		t.Cleanup(func() { os.Unsetenv("APPR_DOTENV_B") })

		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "env", os.Getenv("APPR_DOTENV_A"))
		assert.Equal(t, "file", os.Getenv("APPR_DOTENV_B"))
	})
}
