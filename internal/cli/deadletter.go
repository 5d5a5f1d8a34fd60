package cli

import (
	"github.com/spf13/cobra"
)

// NewDLQCmd создаёт группу команд для архива dead-letter.
func NewDLQCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered jobs",
	}

	cmd.AddCommand(
		newDLQListCmd(clientFn, outputFn),
		newDLQReplayCmd(clientFn, outputFn),
	)

	return cmd
}

func newDLQListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var channel string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived dead letters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			letters, err := client.ListDeadLetters(channel, limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "CHANNEL", "REQUEST_ID", "REASON", "FAILED_AT", "REPLAYED_AT"}
			rows := make([][]string, len(letters))
			for i, dl := range letters {
				replayed := dl.ReplayedAt
				if replayed == "" {
					replayed = "-"
				}
				rows[i] = []string{dl.ID, dl.Channel, dl.RequestID, dl.Reason, dl.FailedAt, replayed}
			}

			return out.Print(headers, rows, letters)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Filter by channel (email, push)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newDLQReplayCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "replay ID",
		Short: "Republish a dead letter to its channel queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			dl, err := client.ReplayDeadLetter(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				return out.JSON(dl)
			}
			out.Notice("Replayed %s (request %s) to %s", dl.ID, dl.RequestID, dl.Channel)
			return nil
		},
	}
}
