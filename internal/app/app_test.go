package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plainapi/internal/code"
	"plainapi/internal/config"
	"plainapi/internal/oracle"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.sql")
	require.NoError(t, os.WriteFile(path, []byte(
		"CREATE TABLE users (id INTEGER, email VARCHAR, is_admin BOOLEAN);\n"+
			"CREATE TABLE IF NOT EXISTS audit (id INTEGER);"), 0o644))
	cfg := config.Defaults()
	cfg.Log.Level = "error"
	cfg.Schema.Path = path
	return cfg
}

func TestNew_ParsesWithSchema(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Schema)
	assert.Len(t, a.Schema.Tables(), 1)
	assert.Equal(t, []string{"audit"}, a.Schema.Skipped())

	block, scope, err := a.Parser().ParseBlock(context.Background(), []string{
		"user <- sql fetch users by id",
		"return user",
	}, code.Context{})
	require.NoError(t, err)
	require.Len(t, block, 2)
	typ, _ := scope.Lookup("user")
	assert.Equal(t, code.VarRows, typ)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "plainapi_oracle_calls_total")
}

func TestNew_IncludeIfNotExists(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schema.IncludeIfNotExists = true
	cfg.Oracle.Cache.Backend = "none"
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Len(t, a.Schema.Tables(), 2)
}

func TestNew_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Oracle.Cache.Backend = "redis"
	cfg.Oracle.Cache.Redis = &oracle.RedisStoreOptions{Addr: mr.Addr()}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	_, _, err = a.Parser().ParseBlock(context.Background(), []string{"return 1"}, code.Context{})
	require.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schema.Path = filepath.Join(t.TempDir(), "missing.sql")
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Oracle.Rules = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
