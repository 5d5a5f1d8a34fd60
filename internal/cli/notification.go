package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewSendCmd создаёт команду отправки уведомления.
func NewSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		req      SendRequest
		vars     []string
		varsJSON string
		priority int
	)

	cmd := &cobra.Command{
		Use:   "send TEMPLATE_CODE",
		Short: "Send a notification from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req.TemplateCode = args[0]

			variables, err := parseVariables(vars, varsJSON)
			if err != nil {
				return err
			}
			req.Variables = variables

			if cmd.Flags().Changed("priority") {
				req.Priority = &priority
			}

			resp, err := client.Send(req)
			if err != nil {
				return err
			}

			return out.Detail([][2]string{
				{"NOTIFICATION_ID", resp.NotificationID},
				{"EMAIL", strconv.FormatBool(resp.Channels.Email)},
				{"PUSH", strconv.FormatBool(resp.Channels.Push)},
			}, resp)
		},
	}

	cmd.Flags().StringVar(&req.UserID, "user-id", "", "Recipient user ID (ignored when the token identifies a user)")
	cmd.Flags().StringVar(&req.NotificationType, "channel", "", "Force a single channel (email, push)")
	cmd.Flags().StringVar(&req.RequestID, "request-id", "", "Idempotency key (generated when empty)")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Template variable KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&varsJSON, "vars-json", "", "Template variables as a JSON object")
	cmd.Flags().IntVar(&priority, "priority", 5, "Message priority 0-9")

	return cmd
}

// NewStatusCmd создаёт команду просмотра статусов уведомления.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "status NOTIFICATION_ID",
		Short: "Show delivery status of a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			statuses, err := client.Status(args[0], channel)
			if err != nil {
				return err
			}

			channels := make([]string, 0, len(statuses))
			for ch := range statuses {
				channels = append(channels, ch)
			}
			sort.Strings(channels)

			headers := []string{"CHANNEL", "STATUS", "TIMESTAMP", "ERROR"}
			rows := make([][]string, 0, len(channels))
			for _, ch := range channels {
				rec := statuses[ch]
				if rec == nil {
					rows = append(rows, []string{ch, "-", "-", ""})
					continue
				}
				rows = append(rows, []string{ch, rec.Status, rec.Timestamp, rec.Error})
			}

			return out.Print(headers, rows, statuses)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Only this channel (email, push)")

	return cmd
}

// parseVariables собирает переменные из --vars-json и --var KEY=VALUE.
// --var перекрывает ключи из --vars-json.
func parseVariables(pairs []string, raw string) (map[string]any, error) {
	vars := make(map[string]any)

	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &vars); err != nil {
			return nil, fmt.Errorf("invalid --vars-json: %w", err)
		}
	}

	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --var %q: expected KEY=VALUE", p)
		}
		vars[strings.TrimSpace(key)] = value
	}

	return vars, nil
}
