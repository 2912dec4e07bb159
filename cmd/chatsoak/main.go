// chatsoak — инструмент командной строки для управления
// агентом нагрузочного тестирования через HTTP API.
//
// Использование:
//
//	chatsoak [--api-url URL] [--api-key KEY] [--json] <command> [flags]
//
// Команды:
//
//	status    Состояние воркера
//	metrics   Показатели нагрузки
//	start     Запуск цикла
//	stop      Остановка цикла
//	config    Просмотр и изменение конфигурации
//	messages  Последние пары вопрос/ответ
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/chatsoak/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var apiKey string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "chatsoak",
		Short:         "chatsoak CLI — chatbot soak-test agent control",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:5000"
	if v := os.Getenv("CHATSOAK_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "Agent API URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("API_KEY"), "API key (X-API-KEY)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, apiKey) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewStatusCmd(clientFn, outputFn),
		cli.NewMetricsCmd(clientFn, outputFn),
		cli.NewStartCmd(clientFn, outputFn),
		cli.NewStopCmd(clientFn, outputFn),
		cli.NewConfigCmd(clientFn, outputFn),
		cli.NewMessagesCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		cli.NewOutput(false).Error(err.Error())
		os.Exit(1)
	}
}
