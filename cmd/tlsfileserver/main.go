package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime/debug"

	"github.com/evanj/tlsfileserver"
	"github.com/evanj/tlsfileserver/internal/config"
	"github.com/evanj/tlsfileserver/internal/log"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	rootCmd := &cobra.Command{
		Use:   "tlsfileserver",
		Short: "Serve a directory over HTTPS with an existing certificate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return doServe(cmd, cfg)
		},
	}
	cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.WriteYAML(cmd.OutOrStdout())
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version of tlsfileserver",
		Args:  cobra.NoArgs,
		RunE:  doVersion,
	})

	// main logs the error, never print usage on top of it
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("tlsfileserver failed", "err", err)
		os.Exit(1)
	}
}

func doServe(cmd *cobra.Command, cfg config.Config) error {
	slog.SetDefault(log.New(cfg.Verbose))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := log.ContextAttrs(cmd.Context(), slog.Group("tlsfileserver",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	))
	slog.DebugContext(ctx, "", "config", cfg)

	opts := tlsfileserver.Options{
		Addr:     cfg.Addr(),
		CertFile: cfg.Cert,
		KeyFile:  cfg.Key,
		OnListen: func(addr net.Addr) {
			// report the bound port when an ephemeral one was requested
			if tcp, ok := addr.(*net.TCPAddr); ok {
				cfg.Port = tcp.Port
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", cfg.URL())
		},
	}
	return tlsfileserver.ListenAndServe(ctx, opts, tlsfileserver.NewFileHandler(cfg.Dir))
}

func doVersion(cmd *cobra.Command, _ []string) error {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return fmt.Errorf("tlsfileserver: version info not available")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "tlsfileserver: %s\n", info.Main.Version)
	fmt.Fprintf(out, "go:     %s\n", info.GoVersion)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			fmt.Fprintf(out, "commit: %s\n", s.Value)
		case "vcs.time":
			fmt.Fprintf(out, "date:   %s\n", s.Value)
		case "vcs.modified":
			fmt.Fprintf(out, "dirty:  %s\n", s.Value)
		}
	}
	return nil
}
