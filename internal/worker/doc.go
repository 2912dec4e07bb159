// Package worker — супервизор цикла нагрузочного теста чат-бота.
//
// # Обзор
//
// Worker держит один фоновый цикл, который открывает сессию с чат-ботом,
// отправляет случайные вопросы с паузой interval ± jitter и переживает
// любые ошибки внешней системы. Цикл управляется Start/Stop из API,
// CLI, команд RabbitMQ или расписания.
//
//	w := worker.New(worker.Config{
//	    Executor: executor,
//	    Prompts:  questions.NewSource(questions.FileLoader{Path: path}, "", logger),
//	    Sink:     sink,
//	    Recorder: metrics,
//	    Pacing:   domain.Pacing{Interval: 60 * time.Second, Jitter: 15 * time.Second},
//	    Logger:   logger,
//	})
//
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Состояния цикла
//
//	IDLE → ACQUIRING → CYCLE → PACING → CYCLE → ...
//	            ↓         ↓
//	         BACKOFF ← ───┘
//	                      STOPPING → IDLE
//
// Ошибка Acquire записывается в lastError, но не в errorsCount.
// Ошибка Send увеличивает errorsCount, сессия закрывается и открывается заново.
// Ни одна ошибка не останавливает цикл; выход только по Stop.
//
// # Executor
//
// Интерфейс открытия сессии:
//
//	type Executor interface {
//	    Acquire(ctx context.Context) (Session, error)
//	}
//
// Реализации:
//   - HTTPExecutor — JSON API чат-бота, cookie jar, warmup-страница
//   - WebSocketExecutor — websocket-чат, ответ — следующий входящий фрейм
//   - DryRunExecutor — эхо без сети
//
// Registry выбирает реализацию по domain.Target.Kind.
//
// # Паузы
//
// Пауза между сообщениями и restart delay ждут через один примитив
// (wait), который прерывается отменой контекста запуска. Stop не ждёт
// окончания паузы.
//
// # Запуски
//
// Каждый Start создаёт новый run со своим session ID, контекстом
// и счётчиками. Stop ждёт цикл не дольше StopTimeout; цикл, переживший
// таймаут, пишет только в свой run и не влияет на следующий запуск.
package worker
