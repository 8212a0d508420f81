// Package config handles configuration loading for missionlink-gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from MISSIONLINK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/missionlink/gateway.yaml
//  3. ~/.config/missionlink/gateway.yaml
//
// Files with a .toml extension are decoded as TOML with the same keys.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	model:
//	  api_key: "${OPENAI_API_KEY}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	database:
//	  path: "/var/lib/missionlink/gateway.db"
//	directory:
//	  driver: "sqlite"          # sqlite, postgres
//	  dsn: "${DIRECTORY_DSN}"   # postgres only
//	  cache_ttl: "5m"
//	auth:
//	  jwt_secret: "${MISSIONLINK_JWT_SECRET}"
//	  inactive_policy: "reject" # reject, warn
//	  token_ttl: "168h"
//	model:
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o"
//	  step_cap: 5
//	  retry_backoff: "500ms"
//	tools:
//	  timeout: "10s"
//	  max_parallel: 4
//	prompt:
//	  timezone: "Asia/Seoul"
//	  daily_content: true
//	audit:
//	  queue_size: 256
//	  write_timeout: "5s"
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
