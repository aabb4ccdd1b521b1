package main

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/health"
)

// version is stamped via -ldflags at release build time; "dev" otherwise.
var version = "dev"

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP server (/healthz, /readyz, /metrics)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svcCfg, err := openStore()
		if err != nil {
			return err
		}

		h := health.NewHandler(version)
		h.Register("storage", func(ctx context.Context) (health.Status, error) {
			if _, err := openStore(); err != nil {
				return health.StatusUnhealthy, err
			}
			return health.StatusHealthy, nil
		})
		h.Register("ffmpeg", func(ctx context.Context) (health.Status, error) {
			if _, err := exec.LookPath(svcCfg.FFmpegPath); err != nil {
				return health.StatusDegraded, err
			}
			return health.StatusHealthy, nil
		})

		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", h.LivenessHandler())
		mux.HandleFunc("/readyz", h.ReadinessHandler())
		mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))

		server := &http.Server{
			Addr:         serveAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		fmt.Printf("serve: listening on %s\n", serveAddr)
		return server.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "admin server listen address")
	rootCmd.AddCommand(serveCmd)
}
