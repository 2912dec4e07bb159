package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт команду status.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worker status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().Status()
			if err != nil {
				return err
			}

			outputFn().Fields(statusFields(st), st)
			return nil
		},
	}
}

// NewMetricsCmd создаёт команду metrics.
func NewMetricsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show load metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := clientFn().Metrics()
			if err != nil {
				return err
			}

			avg := "-"
			if m.AvgIntervalSeconds != nil {
				avg = formatFloat(*m.AvgIntervalSeconds)
			}

			outputFn().Fields([][2]string{
				{"Running", strconv.FormatBool(m.Running)},
				{"Uptime", formatFloat(m.UptimeSeconds) + "s"},
				{"Messages", strconv.FormatInt(m.MessagesSent, 10)},
				{"Errors", strconv.FormatInt(m.ErrorsCount, 10)},
				{"Avg interval", avg},
				{"Messages/min", formatFloat(m.MessagesPerMinute)},
				{"Last sent", orDash(m.LastSentAt)},
			}, m)
			return nil
		},
	}
}

// NewStartCmd создаёт команду start.
func NewStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the worker loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFn().Start()
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Worker %s", resp.Message))
			out.Fields(statusFields(&resp.Status), resp)
			return nil
		},
	}
}

// NewStopCmd создаёт команду stop.
func NewStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the worker loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFn().Stop()
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Worker %s", resp.Message))
			if out.jsonMode {
				out.JSON(resp)
			}
			return nil
		},
	}
}

func statusFields(st *StatusResponse) [][2]string {
	session := st.SessionID
	if session == "" {
		session = "-"
	}

	return [][2]string{
		{"Running", strconv.FormatBool(st.Running)},
		{"State", st.State},
		{"Session", session},
		{"Messages", strconv.FormatInt(st.MessagesSent, 10)},
		{"Errors", strconv.FormatInt(st.ErrorsCount, 10)},
		{"Uptime", formatFloat(st.UptimeSeconds) + "s"},
		{"Interval", fmt.Sprintf("%ss ± %ss", formatFloat(st.IntervalSeconds), formatFloat(st.JitterSeconds))},
		{"Started", orDash(st.StartedAt)},
		{"Last sent", orDash(st.LastSentAt)},
		{"Last message", truncate(orDash(st.LastMessage), 60)},
		{"Last response", truncate(orDash(st.LastResponse), 60)},
		{"Last error", truncate(orDash(st.LastError), 60)},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// truncate обрезает строку до n рун.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
