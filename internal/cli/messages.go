package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewMessagesCmd создаёт команду messages.
func NewMessagesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show recent prompt/reply pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := clientFn().Messages(limit)
			if err != nil {
				return err
			}

			headers := []string{"TIMESTAMP", "MESSAGE", "RESPONSE"}
			rows := make([][]string, len(messages))
			for i, m := range messages {
				rows[i] = []string{m.Timestamp, truncate(m.Message, 40), truncate(flatten(m.Response), 60)}
			}

			outputFn().Print(headers, rows, messages)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of messages")

	return cmd
}

// flatten склеивает многострочный ответ в одну строку таблицы.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
