/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/todoapi/apiserver/config"
	"github.com/todoapi/apiserver/internal/mq"
	"github.com/todoapi/apiserver/types"
)

var tailChannel string

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect change events published by the server",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print change events from a channel until interrupted",
	Long: `Subscribes to the users or todoitems channel on the configured broker
(MQ_BACKEND=rabbitmq|pubsub|nats) and prints each event as one JSON line.

	todoapi events tail --channel todoitems
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tailChannel != types.ChannelUsers && tailChannel != types.ChannelTodoItems {
			return fmt.Errorf("channel must be %q or %q", types.ChannelUsers, types.ChannelTodoItems)
		}

		cfg := config.LoadConfig()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.NewFromConfig(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer broker.Close()

		out := cmd.OutOrStdout()
		err = broker.Subscribe(ctx, tailChannel, func(_ context.Context, msg mq.Message) error {
			_, werr := fmt.Fprintln(out, string(msg.Data))
			return werr
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)

	eventsTailCmd.Flags().StringVar(&tailChannel, "channel", types.ChannelTodoItems, "channel to follow: users or todoitems")
}
