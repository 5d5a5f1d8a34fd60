// Package config загружает конфигурацию бинарников из переменных окружения.
//
// Каждый бинарник имеет свою структуру (API, Worker, Janitor), собранную
// из общих секций: Log, Broker, Redis, Postgres, Breaker, Upstream, Delivery.
// Значения по умолчанию заданы тегами envDefault, поэтому локальный запуск
// работает без единой переменной, кроме CHANNEL у воркера.
//
//	cfg, err := config.Load[config.Worker]()
package config
