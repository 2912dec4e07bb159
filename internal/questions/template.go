package questions

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"text/template"
	"time"
)

// Ошибки рендеринга.
var (
	ErrTemplateParse  = errors.New("template parse error")
	ErrTemplateRender = errors.New("template render error")
)

// EnvPrefix — префикс переменных окружения, доступных шаблонам:
// CHATSOAK_PROMPT_COURSE читается как {{ .Env.COURSE }}.
const EnvPrefix = "CHATSOAK_PROMPT_"

// Context — данные, доступные в шаблоне вопроса.
//
//	{{ .Seq }}        — номер сообщения в сессии (с 1)
//	{{ .Session }}    — ID сессии воркера
//	{{ .Now }}        — текущее время (time.Time)
//	{{ .Env.NAME }}   — переменные из PromptEnv
type Context struct {
	Seq     int64
	Session string
	Now     time.Time
	Env     map[string]string
}

// NewContext создаёт контекст. env не копируется и не должен меняться.
func NewContext(seq int64, session string, now time.Time, env map[string]string) *Context {
	return &Context{
		Seq:     seq,
		Session: session,
		Now:     now,
		Env:     env,
	}
}

// PromptEnv собирает переменные для шаблонов: из environ берутся только
// переменные с EnvPrefix (префикс отбрасывается), extra применяется поверх.
// Остальное окружение процесса в шаблоны не попадает.
func PromptEnv(environ []string, extra map[string]string) map[string]string {
	env := make(map[string]string)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if name, found := strings.CutPrefix(k, EnvPrefix); found && name != "" {
			env[name] = v
		}
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

// IsTemplate проверяет, нужно ли рендерить prompt.
func IsTemplate(prompt string) bool {
	return strings.Contains(prompt, "{{")
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// pick — случайный элемент из аргументов
	"pick": func(items ...string) string {
		if len(items) == 0 {
			return ""
		}
		return items[rand.IntN(len(items))]
	},

	// default — значение по умолчанию для пустой строки
	"default": func(def, val string) string {
		if val == "" {
			return def
		}
		return val
	},

	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
}

// Render рендерит вопрос как Go template.
// Строки без "{{" возвращаются без изменений.
func Render(prompt string, ctx *Context) (string, error) {
	if !IsTemplate(prompt) {
		return prompt, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=zero").Parse(prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}
