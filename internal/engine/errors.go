package engine

import "errors"

// Ошибки рендеринга шаблонов.
var (
	// ErrMissingVariables — шаблону не хватает переменных.
	ErrMissingVariables = errors.New("missing template variables")
)
