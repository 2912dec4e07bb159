package questions

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// DefaultPrompt — вопрос, если файл ни разу не удалось загрузить.
const DefaultPrompt = "Olá, tudo bem?"

// Loader читает текущий набор вопросов.
type Loader interface {
	Load() ([]string, error)
}

// FileLoader читает вопросы из текстового файла, по одному на строку.
// Пустые строки пропускаются, пробелы по краям обрезаются.
type FileLoader struct {
	Path string
}

// Load читает файл.
func (l FileLoader) Load() ([]string, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}
	return ParseLines(string(data)), nil
}

// LoaderFunc — функция как Loader.
type LoaderFunc func() ([]string, error)

// Load вызывает f.
func (f LoaderFunc) Load() ([]string, error) {
	return f()
}

// StaticLoader возвращает фиксированный набор.
type StaticLoader []string

// Load возвращает копию набора.
func (l StaticLoader) Load() ([]string, error) {
	return append([]string(nil), l...), nil
}

// ParseLines разбивает текст на непустые обрезанные строки.
func ParseLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Source — кэш вопросов поверх Loader.
type Source struct {
	loader   Loader
	fallback string
	logger   *slog.Logger

	mu    sync.Mutex
	cache []string
}

// NewSource создаёт Source. Пустой fallback заменяется на DefaultPrompt.
func NewSource(loader Loader, fallback string, logger *slog.Logger) *Source {
	if fallback == "" {
		fallback = DefaultPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		loader:   loader,
		fallback: fallback,
		logger:   logger,
	}
}

// Prompts перечитывает источник и возвращает активный набор (копию).
func (s *Source) Prompts() []string {
	lines, err := s.loader.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err != nil:
		s.logger.Error("failed to load questions", "error", err)
	case len(lines) > 0:
		s.cache = lines
	}

	if len(s.cache) == 0 {
		return []string{s.fallback}
	}
	return append([]string(nil), s.cache...)
}

// Len возвращает размер кэша (0, если ещё ни разу не загрузился).
func (s *Source) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
