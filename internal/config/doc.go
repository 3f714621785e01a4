// Package config handles configuration loading for prism-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. A missing file is not an error: defaults plus environment
// fallbacks apply, so a plain .env deployment needs no YAML at all.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PRISM_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/prism/gateway.yaml
//  3. ~/.config/prism/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	providers:
//	  openai_key: "${OPENAI_KEY}"
//
// # Environment Fallbacks
//
// Credentials left unset in YAML resolve from OPENAI_KEY, GEMINI_KEY, and
// CLAUDE_KEY; the default provider resolves from DEFAULT_PROVIDER.
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "127.0.0.1:8000"
//
// Gateway behavior and budgets:
//
//	gateway:
//	  environment: "development"
//	  default_provider: "echo"
//	  request_timeout: "120s"
//	  max_request_bytes: 256000
//	  max_input_tokens: 6000
//	  default_max_tokens: 2048
//	  stream_buffer_bytes: 65536
//	  stream_byte_budget: 1024000
//	  mailbox_depth: 100
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Unset budgets fall back to the defaults above; stream_byte_budget defaults
// to four times max_request_bytes.
package config
