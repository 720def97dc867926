// Package tlsfileserver serves a directory over HTTPS using an existing
// certificate and private key.
package tlsfileserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// DefaultAddr is used when Options.Addr is empty.
const DefaultAddr = "localhost:4443"

type Options struct {
	Addr     string
	CertFile string // PEM certificate chain
	KeyFile  string // PEM private key
	// OnListen is called once the socket is bound, before the first Accept.
	OnListen func(net.Addr)
}

// LoadCertificate reads a PEM encoded certificate chain and its private key.
func LoadCertificate(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("loading key pair %s, %s: %w", certFile, keyFile, err)
	}
	return cert, nil
}

// NewTLSConfig returns a server side config offering TLS 1.2 and 1.3 with
// certificate as the only identity. Only http/1.1 is advertised via ALPN.
func NewTLSConfig(certificate tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{certificate},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}
}

// Listen binds addr and terminates TLS on every accepted connection.
func Listen(ctx context.Context, addr string, config *tls.Config) (net.Listener, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	var lc net.ListenConfig
	conn, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return tls.NewListener(conn, config), nil
}

// Serve handles HTTP/1.1 requests on ln until ctx is done or accepting fails.
// On ctx cancellation the server is closed at once, in-flight requests are
// not drained, and Serve returns nil.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler: handler,
		// "OPTIONS *" goes to handler, which answers 501
		DisableGeneralOptionsHandler: true,
		// non-nil and empty: never upgrade to HTTP/2
		TLSNextProto: map[string]func(*http.Server, *tls.Conn, http.Handler){},
		BaseContext:  func(net.Listener) context.Context { return ctx },
		ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", ln.Addr(), err)
	})
	g.Go(func() error {
		<-gctx.Done()
		if err := server.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.DebugContext(ctx, "closing server", "error", err)
		}
		return nil
	})
	return g.Wait()
}

// ListenAndServe loads the key pair, binds opts.Addr and serves handler
// until ctx is done.
func ListenAndServe(ctx context.Context, opts Options, handler http.Handler) error {
	certificate, err := LoadCertificate(opts.CertFile, opts.KeyFile)
	if err != nil {
		return err
	}

	ln, err := Listen(ctx, opts.Addr, NewTLSConfig(certificate))
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "listening", slog.String("addr", ln.Addr().String()))

	if opts.OnListen != nil {
		opts.OnListen(ln.Addr())
	}
	return Serve(ctx, ln, handler)
}
