package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"diggin-checkout/internal/infrastructure/notify"

	"github.com/spf13/cobra"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Deliver queued notification emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp("notifier")
		if err != nil {
			return err
		}
		defer a.close()

		if a.cfg.AMQPURL == "" {
			return errors.New("AMQP_URL is required")
		}
		ch, closeConn, err := notify.Connect(a.cfg.AMQPURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, closeConn)

		return notify.NewConsumer(ch, a.sender(), a.cfg.AdminEmail, a.log).Run(ctx)
	},
}
