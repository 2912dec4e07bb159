// Package sink — журналы пар вопрос/ответ.
//
// Реализации:
//   - CSV — append-only файл timestamp_utc,message,response
//   - SQLite — локальная база, отдаёт историю
//   - Redis — ограниченный список, отдаёт историю
//   - AMQP — событие message.sent в RabbitMQ
//
// PostgreSQL-журнал — repo.MessageRepo.
//
// Fanout объединяет несколько sink'ов и считает ошибки по имени.
package sink
