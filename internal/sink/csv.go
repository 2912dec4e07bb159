package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/chatsoak/internal/domain"
)

var csvHeader = []string{"timestamp_utc", "message", "response"}

// CSV — append-only CSV-журнал.
//
// Заголовок пишется один раз при создании файла. Переводы строк
// в ответе заменяются пробелами, чтобы одна запись была одной строкой.
type CSV struct {
	path string
	mu   sync.Mutex
}

// NewCSV создаёт каталог и файл с заголовком, если их нет.
func NewCSV(path string) (*CSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	switch {
	case err == nil:
		w := csv.NewWriter(f)
		w.Write(csvHeader)
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close csv: %w", err)
		}
	case os.IsExist(err):
	default:
		return nil, fmt.Errorf("create csv: %w", err)
	}

	return &CSV{path: path}, nil
}

// Append дописывает строку. Файл открывается на каждую запись,
// поэтому внешняя ротация не ломает журнал.
func (c *CSV) Append(_ context.Context, rec domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Prompt,
		flatten(rec.Reply),
	})
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	return nil
}

// Path возвращает путь к файлу.
func (c *CSV) Path() string {
	return c.path
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
