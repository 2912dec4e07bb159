// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — события и команды
//   - consumer.go   — потребление команд управления
//
// События (chatsoak.events):
//   - message.sent  — отправленный вопрос и захваченный ответ
//   - worker.state  — снимок статуса после start/stop
//
// Команды (chatsoak.control → control.commands):
//   - control.start
//   - control.stop
//   - control.pacing — payload domain.PacingPatch
package mq
