package commands

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuvaraj-ayla/lanmode/cmd/lanmode-agent/interactive"
)

func runCmd(opts *options) *cobra.Command {
	var interactiveMode bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the LAN server and keep sessions with the configured devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			a, err := newAgent(cfg, logger, opts.passphrase)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := a.start(ctx); err != nil {
				a.close()
				return err
			}
			log.Printf("Managing %d device(s)", len(cfg.Devices))

			if interactiveMode {
				console, err := interactive.New(a.manager, a.dispatcher)
				if err != nil {
					_ = a.stop(context.Background())
					return err
				}
				log.SetOutput(console.Stdout())
				go console.Run(ctx, cancel)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case sig := <-sigCh:
				log.Printf("Received signal: %v", sig)
			case <-ctx.Done():
			}

			log.Println("Shutting down...")
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			return a.stop(stopCtx)
		},
	}
	cmd.Flags().BoolVarP(&interactiveMode, "interactive", "i", false, "start the interactive console")
	return cmd
}
