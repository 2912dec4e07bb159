package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// loadLocation загружает timezone. Пустое имя — UTC.
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// nextAfter вычисляет следующее срабатывание после from в timezone loc.
// Результат в UTC.
func nextAfter(sched cron.Schedule, loc *time.Location, from time.Time) time.Time {
	return sched.Next(from.In(loc)).UTC()
}
