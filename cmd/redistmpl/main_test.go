package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/redistmpl"
	"github.com/raniellyferreira/redistmpl/internal/redistest"
	"github.com/raniellyferreira/redistmpl/scope"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func serverArgs(t *testing.T) (*redistest.Server, []string) {
	t.Helper()
	srv := redistest.Start(t)
	host, port := srv.HostPort()
	return srv, []string{"--host", host, "--port", strconv.Itoa(port)}
}

func TestExecSubstitutesScopes(t *testing.T) {
	srv, conn := serverArgs(t)

	args := append([]string{"exec", "SET ? ?", "l.key,g.value", "--local", "key=a", "--global", "value=b"}, conn...)
	out, _, err := execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	v, ok := srv.Value(0, "a")
	require.True(t, ok)
	assert.Equal(t, "b", v)

	out, _, err = execute(t, append([]string{"exec", "GET a"}, conn...)...)
	require.NoError(t, err)
	assert.Equal(t, "\"b\"\n", out)
}

func TestExecPrintsArrays(t *testing.T) {
	_, conn := serverArgs(t)

	_, _, err := execute(t, append([]string{"exec", "RPUSH list x y"}, conn...)...)
	require.NoError(t, err)

	out, _, err := execute(t, append([]string{"exec", "LRANGE list 0 -1"}, conn...)...)
	require.NoError(t, err)
	assert.Equal(t, "1) \"x\"\n2) \"y\"\n", out)
}

func TestExecPrintfDialect(t *testing.T) {
	srv, conn := serverArgs(t)

	args := append([]string{"exec", "SET user:%s %s", "l.id,l.name", "--dialect", "printf", "-l", "id=7", "-l", "name=ann"}, conn...)
	_, _, err := execute(t, args...)
	require.NoError(t, err)

	v, ok := srv.Value(0, "user:7")
	require.True(t, ok)
	assert.Equal(t, "ann", v)
}

func TestExecErrorPolicy(t *testing.T) {
	_, conn := serverArgs(t)

	t.Run("recover reports and succeeds", func(t *testing.T) {
		out, errOut, err := execute(t, append([]string{"exec", "SET ? ?", "l.key"}, conn...)...)
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Contains(t, errOut, "malformed_command")
	})

	t.Run("abort fails", func(t *testing.T) {
		_, _, err := execute(t, append([]string{"exec", "SET ? ?", "l.key", "--on-error", "abort"}, conn...)...)
		require.Error(t, err)
		assert.Equal(t, redistmpl.CodeMalformedCommand, redistmpl.CodeOf(err))
	})

	t.Run("error reply is printed", func(t *testing.T) {
		out, _, err := execute(t, append([]string{"exec", "NOSUCH"}, conn...)...)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "(error) ERR unknown command"))
	})
}

func TestConnectFailure(t *testing.T) {
	args := []string{"exec", "PING", "--host", "127.0.0.1", "--port", "1"}

	_, errOut, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, errOut, "not_connected")

	_, _, err = execute(t, append(args, "--on-error", "abort")...)
	require.Error(t, err)
	assert.Equal(t, redistmpl.CodeConnectError, redistmpl.CodeOf(err))
}

func TestConfigFileAndFlags(t *testing.T) {
	srv, conn := serverArgs(t)

	path := filepath.Join(t.TempDir(), "redistmpl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: 192.0.2.1\ndialect: printf\nlog_level: error\n"), 0o600))

	// --host and --port override the file, the dialect comes from it
	args := append([]string{"exec", "SET %s v", "l.k", "-l", "k=fromfile", "--config", path}, conn...)
	_, _, err := execute(t, args...)
	require.NoError(t, err)

	_, ok := srv.Value(0, "fromfile")
	assert.True(t, ok)
}

func TestInvalidFlags(t *testing.T) {
	tests := [][]string{
		{"exec", "PING", "--transport", "smoke-signal"},
		{"exec", "PING", "--dialect", "jinja"},
		{"exec", "PING", "--on-error", "shrug"},
		{"exec", "PING", "--local", "novalue"},
		{"exec"},
		{"run"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, _, err := execute(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestRunScript(t *testing.T) {
	srv, conn := serverArgs(t)

	script := filepath.Join(t.TempDir(), "script.lua")
	require.NoError(t, os.WriteFile(script, []byte(`
redis_set("greeting", ARGV[1])
local ok, v = redis_get("greeting")
return v
`), 0o600))

	out, _, err := execute(t, append([]string{"run", script, "hello"}, conn...)...)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	v, ok := srv.Value(0, "greeting")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestRunScriptAbort(t *testing.T) {
	_, conn := serverArgs(t)

	script := filepath.Join(t.TempDir(), "script.lua")
	require.NoError(t, os.WriteFile(script, []byte(`redis_command("SET ? ?", "l.a")`), 0o600))

	_, _, err := execute(t, append([]string{"run", script}, conn...)...)
	require.NoError(t, err)

	_, _, err = execute(t, append([]string{"run", script, "--on-error", "abort"}, conn...)...)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "redistmpl "+redistmpl.VersionString()+"\n", out)
}

func TestParseAssignments(t *testing.T) {
	m, err := parseAssignments([]string{"a=1", "b=x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, scope.Map{"a": "1", "b": "x=y", "c": ""}, m)

	_, err = parseAssignments([]string{"=v"})
	assert.Error(t, err)
}
