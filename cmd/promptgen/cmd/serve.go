package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/access"
	"github.com/mnrezaali/ai-prompt-generator/internal/api"
	"github.com/mnrezaali/ai-prompt-generator/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server. It exposes the streaming relay at
/api/generate and a single shared prompt session under /api/v1.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		if host != "" {
			cfg.Server.Host = host
		}
		if port > 0 {
			cfg.Server.Port = port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		sessions := access.NewSessions(access.DefaultSessionTTL)
		srv := api.NewServer(api.Deps{
			Relay:          sess.relay,
			Manager:        sess.manager,
			Gate:           sess.gate,
			Sessions:       sessions,
			Model:          sess.model.String(),
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		addr := cfg.Server.Addr()
		fmt.Printf("Prompt generator API on http://%s (model %s)\n", addr, sess.model)
		log.Info("Serving", "addr", addr, "model", sess.model.String(), "gate", sess.gate.Enabled())

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Start(addr)
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info("Shutting down API server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		})
		g.Go(func() error {
			sessions.Cleanup(gctx, time.Hour)
			return nil
		})

		config.Watch(func(c *config.Config) {
			applyLogLevel(c)
			sess.manager.SetHistoryCapacity(gctx, c.History.Capacity)
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to listen on (default from config, 127.0.0.1)")
	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config, 47000)")
}
