package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/redistmpl"
	"github.com/raniellyferreira/redistmpl/template"
)

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, 6379, cfg.Port)
	assert.Equal(t, "radix", cfg.Transport)
	assert.Equal(t, "token", cfg.Dialect)
	assert.Equal(t, "recover", cfg.OnError)
	assert.Equal(t, "marker", cfg.NilPolicy)
	assert.Empty(t, cfg.Address())

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, lvl)
}

func TestParseYAML(t *testing.T) {
	doc := []byte(`
host: 10.0.0.5
port: 6380
transport: goredis
dialect: printf
on_error: abort
nil_policy: skip
max_substitutions: 8
log_level: debug
`)
	cfg, err := Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:6380", cfg.Address())
	assert.Equal(t, "goredis", cfg.Transport)
	assert.Equal(t, "printf", cfg.Dialect)
	assert.Equal(t, 8, cfg.MaxSubstitutions)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, redistmpl.PolicyAbort, policy)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("REDISTMPL_PORT", "7000")
	t.Setenv("REDISTMPL_ON_ERROR", "abort")
	t.Setenv("REDISTMPL_MAX_SUBSTITUTIONS", "3")

	cfg, err := Parse([]byte("host: localhost\nport: 6380\non_error: recover\n"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:7000", cfg.Address())
	assert.Equal(t, "abort", cfg.OnError)
	assert.Equal(t, 3, cfg.MaxSubstitutions)
}

func TestUnsetEnvironmentKeepsFileValues(t *testing.T) {
	cfg, err := Parse([]byte("dialect: printf\n"))
	require.NoError(t, err)
	assert.Equal(t, "printf", cfg.Dialect)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"port", "port: 70000"},
		{"transport", "transport: carrier-pigeon"},
		{"dialect", "dialect: jinja"},
		{"on_error", "on_error: ignore"},
		{"nil_policy", "nil_policy: drop"},
		{"max_substitutions", "max_substitutions: -1"},
		{"log_level", "log_level: loud"},
		{"yaml", "port: [1, 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("REDISTMPL_PORT", "not-a-number")
	_, err := Parse(nil)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "redistmpl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: 127.0.0.1\ndialect: printf\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", cfg.Address())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestOptionsBuildSession(t *testing.T) {
	dir := t.TempDir()
	resource := filepath.Join(dir, "connection")
	require.NoError(t, os.WriteFile(resource, []byte("127.0.0.1:1"), 0o600))

	cfg, err := Parse([]byte("dialect: printf\non_error: abort\nlog_level: error\nresource: " + resource + "\n"))
	require.NoError(t, err)

	opts, err := cfg.Options()
	require.NoError(t, err)

	s, err := redistmpl.New(opts...)
	require.NoError(t, err)
	assert.Equal(t, template.Printf, s.Dialect())
	assert.Equal(t, redistmpl.PolicyAbort, s.Policy())
}
