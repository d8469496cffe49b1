// Package config handles configuration loading for parley.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	llm:
//	  api_key: "${PARLEY_LLM_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	cache:
//	  ttl: "30m"
//	  sweep_interval: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Model access:
//
//	llm:
//	  base_url: "https://api.openai.com/v1"  # Optional, defaults to OpenAI
//	  api_key: "${PARLEY_LLM_API_KEY}"       # Required
//	  model: "gpt-4o-mini"                   # Required
//	  system_prompt: "You are parley."
//
// Web search tool:
//
//	search:
//	  enabled: false
//	  base_url: "https://api.exa.ai"
//	  api_key: "${PARLEY_SEARCH_API_KEY}"
//	  num_results: 5
//	  highlights: true
//
// Storage:
//
//	storage:
//	  dir: "/var/lib/parley"  # One SQLite database per owner
//
// Handle cache:
//
//	cache:
//	  capacity: 32
//	  ttl: "30m"
//	  sweep_interval: "5m"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - LLM api key and model presence
//   - Storage directory presence
//   - Cache capacity and duration bounds
//   - Search credentials when the tool is enabled
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/parley/parley.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
