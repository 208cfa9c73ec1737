package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWriters(&buf, "WARN")
	defer CloseLogFiles()

	Debug("debug %d", 1)
	Info("info %d", 2)
	Warn("warn %d", 3)
	Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "WARN: warn 3")
	assert.Contains(t, out, "error 4")
}

func TestProxyLoggerDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWriters(&buf, "debug")
	defer CloseLogFiles()

	ProxyDebug("rewrote %s", "example.com")
	assert.Contains(t, buf.String(), "PROXY: rewrote example.com")
}

func TestInitGlobalLoggersWritesFiles(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "logs", "app.log")
	proxyPath := filepath.Join(dir, "logs", "proxy.log")

	require.NoError(t, InitGlobalLoggers(appPath, proxyPath, "info"))
	Info("hello %s", "app")
	ProxyInfo("hello %s", "proxy")
	CloseLogFiles()

	app, err := os.ReadFile(appPath)
	require.NoError(t, err)
	assert.Contains(t, string(app), "hello app")

	proxy, err := os.ReadFile(proxyPath)
	require.NoError(t, err)
	assert.Contains(t, string(proxy), "hello proxy")
}

func TestInitGlobalLoggersRejectsUnknownLevel(t *testing.T) {
	dir := t.TempDir()
	err := InitGlobalLoggers(filepath.Join(dir, "a.log"), filepath.Join(dir, "p.log"), "loud")
	assert.Error(t, err)
}
