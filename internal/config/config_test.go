package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
nick: chanops
server: irc.example.net
tls: true
channels: ["#chan", "#ops"]
capabilities:
  quiets: true
  atheme: true
services:
  chanserv: CS
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "chanops", cfg.Nick)
	assert.Equal(t, 6697, cfg.Port)
	assert.Equal(t, []string{"#chan", "#ops"}, cfg.Channels)
	assert.True(t, cfg.Capabilities.Quiets)
	assert.True(t, cfg.Capabilities.Atheme)
	assert.False(t, cfg.Capabilities.Remove)
	assert.Equal(t, "CS", cfg.Services.ChanServ)
	assert.Equal(t, "NickServ", cfg.Services.NickServ)

	// Defaults
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "chanops_", cfg.Alternate)
	assert.Equal(t, "chanops", cfg.Username)
	assert.Equal(t, "irc.example.net", cfg.Network)
	assert.Equal(t, "Goodbye", cfg.KickMessage)
	assert.Equal(t, "Goodbye", cfg.AkickMessage)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
nick = "chanops"
server = "irc.example.net"
port = 7000
kick_message = "Bye"
metrics_listen = "127.0.0.1:9108"

[capabilities]
remove = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.True(t, cfg.Capabilities.Remove)
	assert.Equal(t, "Bye", cfg.AkickMessage)
	assert.Equal(t, "127.0.0.1:9108", cfg.MetricsListen)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvNickPass, "from-env")
	t.Setenv(EnvAdminPass, "admin-env")

	path := writeFile(t, "config.yml", `
nick: chanops
nick_pass: from-file
server: irc.example.net
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.NickPass)
	assert.Equal(t, "admin-env", cfg.AdminPass)
	assert.Empty(t, cfg.SASLPass)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeFile(t, "bad.yaml", "nick: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config file")

	_, err = Load(writeFile(t, "nonick.yaml", "server: irc.example.net"))
	assert.ErrorContains(t, err, "'Nick' failed on the 'required' tag")

	_, err = Load(writeFile(t, "badport.yaml", "nick: a\nserver: b\nport: 70000"))
	assert.ErrorContains(t, err, "'Port' failed on the 'max' tag")

	_, err = Load(writeFile(t, "badmetrics.yaml", "nick: a\nserver: b\nmetrics_listen: nowhere"))
	assert.ErrorContains(t, err, "'MetricsListen' failed on the 'hostname_port' tag")

	_, err = Load(writeFile(t, "badchan.yaml", "nick: a\nserver: b\nchannels: [chan]"))
	assert.ErrorContains(t, err, `invalid channel "chan"`)
}

func TestCheckAdminPass(t *testing.T) {
	cfg := &Config{AdminPass: "sekrit"}
	assert.True(t, cfg.CheckAdminPass("sekrit"))
	assert.False(t, cfg.CheckAdminPass("sekrit2"))

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.AdminPass = string(hash)
	assert.True(t, cfg.CheckAdminPass("hunter2"))
	assert.False(t, cfg.CheckAdminPass(string(hash)))

	// no password configured means nobody gets in
	cfg.AdminPass = ""
	assert.False(t, cfg.CheckAdminPass(""))
}
