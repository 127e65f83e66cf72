// Package config handles configuration loading for reading-club.
//
// Configuration is loaded from YAML files with ${VAR_NAME} environment
// variable expansion, duration parsing, and validation.
//
// Sections:
//
//	server:
//	  http_addr: "localhost:8080"
//
//	database:
//	  path: "/var/lib/reading-club/club.db"
//
//	auth:
//	  jwt_secret: "${CLUB_JWT_SECRET}"
//	  session_ttl: "168h"
//	  login_code_ttl: "10m"
//	  invite_ttl: "24h"
//
//	site:
//	  title: "Lily-Rose's Reading Club"
//	  base_url: "https://club.example.com"
//	  catalog_path: ""   # optional bookcase catalog override (TOML)
//
//	tailscale:
//	  enabled: false
//	  hostname: "reading-club"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
