// Package cli реализует инструмент командной строки chatsoak.
//
// # Обзор
//
// CLI — клиентская утилита для API агента (cmd/chatsoak-agent).
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует запросы, ключ X-API-KEY,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:5000", "")
//	st, err := client.Status()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: chatsoak status --json | jq .
//
// ## Commands
//
//   - status, metrics, start, stop
//   - config show, config set --interval --jitter --restart-delay
//   - messages --limit
//
// Фабричные функции (NewStatusCmd и т.д.) принимают clientFn и outputFn —
// замыкания для ленивого создания Client и Output после парсинга
// PersistentFlags.
package cli
