// Package worker доставляет задания одного канала.
//
// # Обзор
//
// Worker — stateless процесс relay-worker, привязанный к одному каналу
// (email или push). Он потребляет очередь канала и передаёт задания
// провайдеру через provider.Sender.
//
// Workers масштабируются процессами: несколько экземпляров
// потребляют одну и ту же очередь с prefetch 1.
//
// # Обработка задания
//
//  1. Разбор и валидация. Невалидное задание → RejectDiscard
//  2. Маркер processed:{channel}:{request_id}. Есть → Ack без отправки
//  3. Breaker провайдера. Открыт → пауза, RejectRequeue
//  4. Отправка с повторами
//  5. Успех → маркер, OnSuccess, отчёт delivered, Ack
//  6. Исчерпание → OnFailure, отчёт failed, RejectDiscard
//
// RejectDiscard на очередях каналов приводит к dead-letter в failed.queue.
//
// # Retry
//
// Повторы выполняются в процессе, без requeue в RabbitMQ.
// Задержка перед повтором n: BaseDelay * 2^(n-1), то есть 1s, 2s, 4s
// при настройках по умолчанию. Постоянные ошибки провайдера
// (provider.ErrPermanent) не повторяются и не учитываются breaker'ом.
//
// Отмена ctx посреди повторов возвращает задание в очередь.
package worker
