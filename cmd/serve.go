package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mosaic/internal/server"
	"github.com/sells-group/mosaic/pkg/regional"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Fit regional models and serve predictions over HTTP",
	Long:  "Fits the regional ensemble once at startup, then serves predictions, region metadata, and run history over HTTP.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		in, err := loadInputs(cmd)
		if err != nil {
			return err
		}
		ens, _, err := fitFromFlags(ctx, cmd, in)
		if err != nil {
			return err
		}

		smooth, err := paramFlag(cmd, "smooth", cfg.Predict.Smooth)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("run store unavailable",
				zap.String("component", "cmd"),
				zap.Error(err),
			)
			st = nil
		} else {
			defer st.Close() //nolint:errcheck
		}

		var srv *server.Server
		if st != nil {
			srv = server.New(ens, st, serverOptions(smooth))
		} else {
			srv = server.New(ens, nil, serverOptions(smooth))
		}

		port := cfg.Server.Port
		if p, _ := cmd.Flags().GetInt("port"); p != 0 {
			port = p
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Handler(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = httpSrv.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Int("regions", ens.Len()),
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func serverOptions(smooth regional.Param) server.Options {
	return server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Smooth:         smooth,
		Workers:        cfg.Predict.Workers,
	}
}

func init() {
	registerFitFlags(serveCmd)
	serveCmd.Flags().Float64("smooth", 0, "default smoothing radius for requests that omit one")
	serveCmd.Flags().String("smooth-file", "", "per-region smoothing radius YAML file")
	serveCmd.Flags().Int("port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
