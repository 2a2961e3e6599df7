// Package config handles configuration loading for shelf-gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SHELF_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/shelf/gateway.yaml
//  3. ~/.config/shelf/gateway.yaml
//
// Files ending in .toml are decoded as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	calibre:
//	  password: "${CALIBRE_PASSWORD}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:5000"
//
//	database:
//	  path: "/var/lib/shelf/gateway.db"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	mcp:
//	  server_name: "anx-calibre-manager"
//	  server_version: "0.1.0"
//	  protocol_version: "2024-11-05"
//	  max_body_bytes: 1048576
//
//	calibre:
//	  url: "http://calibre:8080"
//	  username: "reader"
//	  password: "${CALIBRE_PASSWORD}"
//	  library_id: "Calibre_Library"
//	  timeout: "30s"
//
//	anx:
//	  data_dir: "/var/lib/shelf/anx"
//
//	smtp:
//	  host: "smtp.example.com"
//	  port: 587
//	  from: "books@example.com"
//
//	conversion:
//	  ebook_convert_path: "/usr/bin/ebook-convert"
package config
