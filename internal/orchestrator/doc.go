// Package orchestrator превращает запрос на уведомление в задания доставки.
//
// Orchestrator отвечает за:
//   - Определение пользователя (токен важнее явного user_id)
//   - Параллельное получение контакта и шаблона через upstream-клиенты
//   - Рендеринг шаблона с подстановкой переменных
//   - Выбор каналов и проверку их достижимости
//   - Публикацию одного задания на канал с общим request_id
//
// Orchestrator не ждёт доставки: результат возвращается сразу
// после публикации в брокер.
package orchestrator
