// Package scheduler открывает и закрывает окна нагрузки по расписанию.
//
// Два необязательных cron-правила: start_cron запускает воркер,
// stop_cron останавливает. Выражения 5-полевые, вычисляются в заданной
// timezone.
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Worker:    w,
//	    StartCron: "0 9 * * 1-5",
//	    StopCron:  "0 18 * * 1-5",
//	    Timezone:  "America/Sao_Paulo",
//	    Logger:    logger,
//	})
//
//	// Tick раз в секунду
//	go sched.Run(ctx, time.Second)
//
// Пропущенные срабатывания (процесс не работал) не догоняются.
package scheduler
