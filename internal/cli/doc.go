// Package cli реализует инструмент командной строки relayctl.
//
// # Обзор
//
// CLI — клиентская утилита для Relay API. Работает через HTTP,
// не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Relay API. Инкапсулирует HTTP-запросы, bearer-токен,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	resp, err := client.Send(cli.SendRequest{TemplateCode: "welcome", UserID: id})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения — в stderr:
// relayctl dlq list --json | jq .
//
// ## Commands
//
//   - send: отправка уведомления по шаблону
//   - status: статусы доставки по каналам
//   - dlq: list, replay
//   - health: состояние зависимостей API
//
// Команды создаются фабричными функциями (NewSendCmd и т.д.),
// принимающими clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
