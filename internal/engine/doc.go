// Package engine рендерит шаблоны уведомлений.
//
// Шаблон — пара subject/body с плейсхолдерами {{ key }}. Поддерживается
// только подстановка переменной, без выражений и вызовов функций.
//
//	r, err := engine.Render(tmpl, map[string]any{"name": "Ann"})
package engine
