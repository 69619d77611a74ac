package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/haivivi/studio/pkg/server"
)

var (
	serveAddr  string
	serveRate  float64
	serveBurst int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assistant over websocket",
	Long: `Serve the assistant over websocket.

Routes:
  GET /ws?session=<id>   run turns and stream records (omit session for a new one)
  GET /media/{id}        generated video and audio
  GET /metrics           Prometheus metrics

Example:
  studio serve --addr :8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		if !e.assistant.Ready() {
			e.logger.Warn("no api key configured, clients must send one")
		}

		srv := server.New(server.Config{
			Assistant:   e.assistant,
			Media:       e.media,
			Gatherer:    e.registry,
			Rate:        rate.Limit(serveRate),
			Burst:       serveBurst,
			TurnTimeout: e.ctx.TurnTimeout(),
			Logger:      e.logger.With("context", e.name),
		})
		return srv.Run(ctx, serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().Float64Var(&serveRate, "rate", float64(server.DefaultRate), "turns per second allowed per client")
	serveCmd.Flags().IntVar(&serveBurst, "burst", server.DefaultBurst, "turns a client may send back to back")
	rootCmd.AddCommand(serveCmd)
}

