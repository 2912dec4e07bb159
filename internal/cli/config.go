package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewConfigCmd создаёт группу команд для конфигурации.
func NewConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change agent configuration",
	}

	cmd.AddCommand(
		newConfigShowCmd(clientFn, outputFn),
		newConfigSetCmd(clientFn, outputFn),
	)

	return cmd
}

func newConfigShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientFn().GetConfig()
			if err != nil {
				return err
			}

			outputFn().Fields(configFields(cfg), cfg)
			return nil
		},
	}
}

func newConfigSetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval, jitter, restartDelay float64
	var url string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update configuration (pacing applies without restart)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch ConfigPatch
			if cmd.Flags().Changed("interval") {
				patch.IntervalSeconds = &interval
			}
			if cmd.Flags().Changed("jitter") {
				patch.Jitter = &jitter
			}
			if cmd.Flags().Changed("restart-delay") {
				patch.RestartDelay = &restartDelay
			}
			if cmd.Flags().Changed("url") {
				patch.URL = &url
			}
			if patch == (ConfigPatch{}) {
				return errors.New("nothing to update: pass at least one flag")
			}

			cfg, err := clientFn().UpdateConfig(patch)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success("Configuration updated")
			out.Fields(configFields(cfg), cfg)
			return nil
		},
	}

	cmd.Flags().Float64Var(&interval, "interval", 0, "Base interval between messages, seconds")
	cmd.Flags().Float64Var(&jitter, "jitter", 0, "Jitter bound, seconds")
	cmd.Flags().Float64Var(&restartDelay, "restart-delay", 0, "Delay after an error, seconds")
	cmd.Flags().StringVar(&url, "url", "", "Chatbot URL (applies on next start)")

	return cmd
}

func configFields(cfg *ConfigResponse) [][2]string {
	p := cfg.Pacing
	fields := [][2]string{
		{"Interval", formatFloat(p.IntervalSeconds) + "s"},
		{"Jitter", formatFloat(p.JitterSeconds) + "s"},
		{"Restart delay", formatFloat(p.RestartDelaySeconds) + "s"},
		{"Backoff", p.Backoff},
		{"Min delay", formatFloat(p.MinDelaySeconds) + "s"},
	}

	// Остальные поля в алфавитном порядке
	keys := make([]string, 0, len(cfg.Config))
	for k := range cfg.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, [2]string{k, fmt.Sprint(cfg.Config[k])})
	}

	return fields
}
