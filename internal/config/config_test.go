package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/repolens/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: repolens
  password: secret
  name: repolens
analysis:
  cloneTimeoutSeconds: 60
  maxConcurrent: 8
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 60*time.Second, cfg.CloneTimeout())
	assert.Equal(t, 8, cfg.Analysis.MaxConcurrent)
	assert.Contains(t, cfg.PostgresDSN(), "host=db.internal")
	assert.Contains(t, cfg.PostgresDSN(), "sslmode=disable")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 120*time.Second, cfg.CloneTimeout())
	assert.Equal(t, 30*time.Second, cfg.EnrichTimeout())
	assert.Equal(t, 30*time.Second, cfg.ProgressGrace())
	assert.Equal(t, 4, cfg.Analysis.MaxConcurrent)
	assert.Equal(t, 30, cfg.RateLimit.Capacity)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
database:
  host: localhost
  port: 3306
  user: root
  password: pw
  name: repolens
`))
	require.NoError(t, err)
	assert.Equal(t, "root:pw@tcp(localhost:3306)/repolens?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}
