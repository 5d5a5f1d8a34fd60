package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shaiso/Relay/internal/domain"
)

// placeholderRe — плейсхолдер вида {{ name }} (пробелы внутри скобок допустимы).
var placeholderRe = regexp.MustCompile(`{{\s*(\w+)\s*}}`)

// Rendered — результат рендеринга шаблона.
type Rendered struct {
	Subject string
	Body    string

	// Unused — переданные переменные, которых нет в шаблоне (отсортированы).
	Unused []string
}

// Placeholders возвращает отсортированное множество имён плейсхолдеров
// во всех переданных текстах.
func Placeholders(texts ...string) []string {
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
			seen[m[1]] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render подставляет переменные в subject и body шаблона.
//
// Правила:
//   - плейсхолдеры собираются из subject и body вместе
//   - отсутствующая переменная — ошибка *MissingVariablesError со всеми ключами
//   - заменяется каждое вхождение плейсхолдера
//   - значения приводятся к строке через fmt.Sprint, nil даёт пустую строку
func Render(tmpl domain.Template, vars map[string]any) (*Rendered, error) {
	keys := Placeholders(tmpl.Subject, tmpl.Body)

	var missing []string
	for _, k := range keys {
		if _, ok := vars[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingVariablesError{Keys: missing}
	}

	used := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		used[k] = struct{}{}
	}
	var unused []string
	for k := range vars {
		if _, ok := used[k]; !ok {
			unused = append(unused, k)
		}
	}
	sort.Strings(unused)

	return &Rendered{
		Subject: substitute(tmpl.Subject, vars),
		Body:    substitute(tmpl.Body, vars),
		Unused:  unused,
	}, nil
}

func substitute(text string, vars map[string]any) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		return stringify(vars[key])
	})
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// MissingVariablesError — в запросе нет переменных, которых требует шаблон.
type MissingVariablesError struct {
	Keys []string // отсортированы
}

func (e *MissingVariablesError) Error() string {
	return "missing variables: " + strings.Join(e.Keys, ", ")
}

// Unwrap позволяет errors.Is(err, ErrMissingVariables) и errors.Is(err, domain.ErrBadRequest).
func (e *MissingVariablesError) Unwrap() []error {
	return []error{ErrMissingVariables, domain.ErrBadRequest}
}
