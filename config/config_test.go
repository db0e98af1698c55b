package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: ":9090"
mysql:
  dsn: "user:pass@tcp(db:3306)/scriptslap?parseTime=true"
auth:
  jwt_secret: "from-file"
workflow:
  timeout: 5s
  refine_cta_url: "https://example.test/cta"
credits:
  generate_cost: 4
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("N8N_REFINE_HOOK_URL", "https://example.test/hook")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret, "environment overrides the file")
	assert.Equal(t, 5*time.Second, cfg.Workflow.Timeout)
	assert.Equal(t, "https://example.test/hook", cfg.Workflow.RefineHookURL)
	assert.Equal(t, "https://example.test/cta", cfg.Workflow.RefineCTAURL)
	assert.Equal(t, DefaultGenerateURL, cfg.Workflow.GenerateURL)
	assert.Equal(t, 4, cfg.Credits.GenerateCost)
	assert.Equal(t, 1, cfg.Credits.RefineCost)
}

func TestLoad_UndefinedWebhookFallsBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("N8N_ADD_PARAGRAPH_URL", "undefined")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultAddParagraphURL, cfg.Workflow.AddParagraphURL)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "JWT_SECRET=dotenv-secret\nWORKER_CONCURRENCY=9\n")
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("WORKER_CONCURRENCY")
	})

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 9, cfg.Worker.Concurrency)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load("", "")
	assert.Error(t, err)
}
