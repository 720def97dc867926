package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanj/tlsfileserver/internal/config"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	c := config.Default()
	require.Equal(t, config.Config{
		Host: "localhost",
		Port: 4443,
		Cert: "localhost.pem",
		Key:  "localhost-key.pem",
		Dir:  ".",
	}, c)
	require.Equal(t, "localhost:4443", c.Addr())
	require.Equal(t, "https://localhost:4443", c.URL().String())
	require.NoError(t, c.Validate())
}

func TestBindFlags(t *testing.T) {
	t.Parallel()
	c := config.Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"--port", "8443", "--host", "::1", "-v"}))
	require.Equal(t, 8443, c.Port)
	require.True(t, c.Verbose)
	require.Equal(t, "[::1]:8443", c.Addr())
	require.Equal(t, "localhost.pem", c.Cert)

	f := fs.Lookup("port")
	require.NotNil(t, f)
	require.Equal(t, "4443", f.DefValue)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	var testCases = []struct {
		scenario string
		given    func(*config.Config)
		then     string
	}{
		{
			scenario: "empty host",
			given:    func(c *config.Config) { c.Host = "" },
			then:     "host must not be empty",
		},
		{
			scenario: "port out of range",
			given:    func(c *config.Config) { c.Port = 70000 },
			then:     "port 70000 out of range",
		},
		{
			scenario: "no key",
			given:    func(c *config.Config) { c.Key = "" },
			then:     "key must not be empty",
		},
		{
			scenario: "missing dir",
			given:    func(c *config.Config) { c.Dir = filepath.Join(t.TempDir(), "nope") },
			then:     "dir:",
		},
		{
			scenario: "dir is a file",
			given:    func(c *config.Config) { c.Dir = file },
			then:     "is not a directory",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			c := config.Default()
			tc.given(&c)
			err := c.Validate()
			require.Error(t, err)
			require.ErrorContains(t, err, tc.then)
		})
	}
}

func TestWriteYAML(t *testing.T) {
	t.Parallel()
	c := config.Default()
	c.Port = 9443

	var buf bytes.Buffer
	require.NoError(t, c.WriteYAML(&buf))

	var got config.Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, c, got)
	require.Contains(t, buf.String(), "port: 9443")
}
