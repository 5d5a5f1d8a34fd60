// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — обменник, очереди каналов, dead-letter очередь
//   - publisher.go  — публикация заданий доставки
//   - consumer.go   — потребление с ручным ack и prefetch
//   - delivery.go   — полученное сообщение и решение обработчика (Outcome)
//
// Обработчик не подтверждает сообщение сам: он возвращает Outcome,
// а Consumer переводит его в ack / nack(requeue) / nack(discard).
// Сообщения, отклонённые без requeue, RabbitMQ перекладывает в
// failed.queue через x-dead-letter-exchange.
package mq
