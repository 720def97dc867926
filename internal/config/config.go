// Package config holds the server settings. Defaults reproduce the
// original hard-coded values: https://localhost:4443 with localhost.pem and
// localhost-key.pem from the working directory.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Host    string `yaml:"host" default:"localhost"`
	Port    int    `yaml:"port" default:"4443"`
	Cert    string `yaml:"cert" default:"localhost.pem"`    // PEM certificate chain
	Key     string `yaml:"key" default:"localhost-key.pem"` // PEM private key
	Dir     string `yaml:"dir" default:"."`                 // served directory
	Verbose bool   `yaml:"verbose"`
}

// Default returns the configuration used when no flag is given.
func Default() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		// only fails on malformed tags, which is a programmer's mistake
		panic(err)
	}
	return c
}

// BindFlags registers one flag per field. Flag defaults are the current
// values of c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "host to listen on")
	fs.IntVar(&c.Port, "port", c.Port, "port to listen on")
	fs.StringVar(&c.Cert, "cert", c.Cert, "PEM encoded certificate chain")
	fs.StringVar(&c.Key, "key", c.Key, "PEM encoded private key")
	fs.StringVar(&c.Dir, "dir", c.Dir, "directory to serve")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "verbose logging")
}

func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 0-65535", c.Port))
	}
	if c.Cert == "" {
		errs = append(errs, errors.New("cert must not be empty"))
	}
	if c.Key == "" {
		errs = append(errs, errors.New("key must not be empty"))
	}
	if info, err := os.Stat(c.Dir); err != nil {
		errs = append(errs, fmt.Errorf("dir: %w", err))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Errorf("dir %s is not a directory", c.Dir))
	}
	return errors.Join(errs...)
}

// Addr is the host:port pair to bind.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL is the base https URL the server answers on.
func (c Config) URL() *url.URL {
	return &url.URL{Scheme: "https", Host: c.Addr()}
}

// WriteYAML renders c as a YAML document.
func (c Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
