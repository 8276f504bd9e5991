package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "memory", c.Storage.Driver)
	require.Equal(t, "memory", c.Cache.Kind)
	require.Equal(t, "15m", c.JWT.AccessTTL)
	require.Equal(t, "720h", c.JWT.RefreshTTL)
	require.Equal(t, "sid", c.Auth.Session.CookieName)
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  addr: ":9000"
jwt:
  issuer: "https://id.example.com"
  access_ttl: "5m"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("JWT_ISSUER", "https://env.example.com")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", c.Server.Addr)
	require.Equal(t, "5m", c.JWT.AccessTTL)
	// el env gana sobre el YAML
	require.Equal(t, "https://env.example.com", c.JWT.Issuer)
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt:\n  access_ttl: \"nope\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: postgres\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
