package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ggp-deploy/internal/handler"
	"ggp-deploy/internal/router"
	"ggp-deploy/internal/service"
)

const shutdownTimeout = 5 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the deploy agent HTTP server",
		Long: `serve exposes deploy, terminate and fetch over HTTP and streams deploy
output over a websocket. Only one ggp operation runs at a time.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: a.runServe,
	}

	f := cmd.Flags()
	f.String("host", "", "listen address (default \"127.0.0.1\")")
	f.Int("port", 0, "listen port (default 8080)")
	_ = a.v.BindPFlag("server.host", f.Lookup("host"))
	_ = a.v.BindPFlag("server.port", f.Lookup("port"))
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	zap.ReplaceGlobals(a.log.Logger)
	gin.SetMode(gin.ReleaseMode)

	b, err := newBackend(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer b.Close()
	b.detached = true

	deployHandler := handler.NewDeployHandler(func(out io.Writer) *service.DeployService {
		return b.deployService(out, out)
	}, a.cfg.Server.AllowedOrigins, a.log)
	toolHandler := handler.NewToolHandler(b.toolService(io.Discard, io.Discard))

	r := router.NewEngine(a.cfg.Server.AllowedOrigins, a.log)
	router.RegisterRoutes(r, deployHandler, toolHandler)

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("ggp", b.target()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-cmd.Context().Done():
	}

	a.log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	a.log.Info("Server exited")
	return nil
}
