// Package config загружает config.yaml агента.
//
// Порядок: значения по умолчанию → YAML-файл (CONFIG_PATH) → env
// (AGENT_PORT, API_KEY, DB_URL, REDIS_URL, RABBITMQ_URL).
//
// Store хранит текущую конфигурацию, применяет частичные обновления
// из API и записывает их обратно в файл.
package config
