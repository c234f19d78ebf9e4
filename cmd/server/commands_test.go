package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrodoc/internal/config"
)

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
}

func TestLoadConfigRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [oops"), 0o600))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestLabelsCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"labels", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 39)
	assert.Contains(t, lines[32], "Tomato___Late_blight")
	assert.Contains(t, lines[32], "Tomato - Late blight")
	assert.NotContains(t, out.String(), "no disease information")
}

func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	dsn := filepath.Join(dir, "agrodoc.db")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: sqlite3\n  dsn: "+dsn+"\n"), 0o600))

	cmd := rootCommand()
	cmd.SetArgs([]string{"migrate", "--config", path})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(dsn)
	assert.NoError(t, err)
}

type shapedModel struct{ h, w int }

func (m shapedModel) InputShape() (int, int) { return m.h, m.w }
func (shapedModel) OutputSize() int { return 38 }
func (shapedModel) Infer(context.Context, []float32) ([]float32, error) {
	return nil, nil
}
func (shapedModel) Close() error { return nil }

func TestCheckInputShape(t *testing.T) {
	cfg := config.Default().Model
	assert.NoError(t, checkInputShape(shapedModel{h: 128, w: 128}, cfg))

	err := checkInputShape(shapedModel{h: 224, w: 224}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "224x224")
}
