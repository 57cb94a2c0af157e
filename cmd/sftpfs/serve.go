package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/telebroad/sftpfs/httpgate"
	"github.com/telebroad/sftpfs/provider"
	"github.com/telebroad/sftpfs/users"
)

func newServeCommand() *cobra.Command {
	var (
		addr        string
		metricsAddr string
		pattern     string
		auth        []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the remote file system over HTTP",
		Long: `Serve the remote file system over an HTTP gateway. Files are read with
GET, uploaded with PUT, appended with PATCH and removed with DELETE,
directories render as HTML listings. With --auth the gateway requires
basic auth.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			if cfg.HTTPAddr == "" {
				return fmt.Errorf("no listen address, set --addr or http_addr in the config file")
			}
			if cfg.URI == "" {
				return fmt.Errorf("no endpoint, set --uri or the config file")
			}

			registry := provider.NewRegistry()
			registry.SetLogger(logger)
			registry.SetRegisterer(prometheus.DefaultRegisterer)
			defer func() {
				if err := registry.CloseAll(); err != nil {
					logger.Error("closing file systems", "error", err)
				}
			}()

			fsys, err := registry.Open(cfg)
			if err != nil {
				return err
			}

			var u httpgate.Users
			if len(auth) > 0 {
				local := users.NewLocalUsers()
				for _, entry := range auth {
					name, pass, ok := strings.Cut(entry, ":")
					if !ok {
						return fmt.Errorf("invalid --auth entry %q, want user:pass", entry)
					}
					local.Add(name, pass, fsys.Home())
				}
				u = local
			}

			handler := httpgate.NewFileServerHandler(pattern, fsys, u)
			handler.SetLogger(logger)

			server := &httpgate.Server{Server: &http.Server{
				Addr:    cfg.HTTPAddr,
				Handler: handler,
			}}
			if err := server.TryListenAndServe(time.Second); err != nil {
				return err
			}
			logger.Info("http gateway is up", "address", cfg.HTTPAddr, "pattern", pattern, "endpoint", fsys.RemoteID())

			var metricsServer *httpgate.Server
			if cfg.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsServer = &httpgate.Server{Server: &http.Server{
					Addr:    cfg.MetricsAddr,
					Handler: mux,
				}}
				if err := metricsServer.TryListenAndServe(time.Second); err != nil {
					return err
				}
				logger.Info("metrics server is up", "address", cfg.MetricsAddr)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if metricsServer != nil {
				if err := metricsServer.Shutdown(ctx); err != nil {
					logger.Error("metrics server shutdown", "error", err)
				}
			}
			return server.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "gateway listen address, such as :8080")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address")
	cmd.Flags().StringVar(&pattern, "pattern", "/", "virtual directory the gateway serves under")
	cmd.Flags().StringArrayVar(&auth, "auth", nil, "basic auth credentials as user:pass, repeatable")
	return cmd
}
