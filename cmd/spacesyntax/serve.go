package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"space_syntax/pkg/api"
	"space_syntax/pkg/syntax"
)

var (
	serveAddr       string
	serveCORSOrigin string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve analyses over HTTP",
	Long: `Serve starts the HTTP API:

  POST /api/v1/analyze   run an analysis on posted polylines
  GET  /api/v1/health    liveness probe
  GET  /api/v1/stats     served analyses and uptime`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveCORSOrigin, "cors-origin", "", "CORS allowed origin (empty = same-origin)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveCORSOrigin != "" {
		cfg.Server.CORSOrigin = serveCORSOrigin
	}
	defaults, err := cfg.Analysis.Request()
	if err != nil {
		return err
	}

	start := time.Now()
	engine := syntax.NewEngine(nil)
	handlers := api.NewHandlers(engine, defaults, cfg.Server.MaxBodyBytes)
	srv := api.NewServer(api.ConfigFrom(cfg.Server), handlers)
	log.Printf("Ready in %s (radius %g, policy %s)", time.Since(start).Round(time.Millisecond),
		cfg.Analysis.Radius, defaults.RadiusPolicy)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		return err
	}
	return nil
}
