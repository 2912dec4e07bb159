// Package questions загружает набор вопросов для отправки чат-боту.
//
// Структура:
//   - source.go   — Source: перезагружаемый кэш вопросов с fallback
//   - template.go — рендеринг вопросов как Go templates
//
// Правила кэша:
//   - Каждый вызов Prompts перечитывает источник
//   - Пустой или неудачный reload сохраняет предыдущий непустой набор
//   - Если набор ни разу не загрузился — используется один вопрос по умолчанию
package questions
