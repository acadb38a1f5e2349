// Package config provides centralized configuration management for vidgate.
//
// Configuration is resolved in this order, later sources winning:
//
//	1. Default() values
//	2. A YAML file ($VIDGATE_CONFIG, or config.yaml / configs/config.yaml)
//	3. Environment variables prefixed with VIDGATE_
//
// Nested sections map to underscored names:
//
//	VIDGATE_SERVER_PORT=8080
//	VIDGATE_STORE_BACKEND=redis
//	VIDGATE_STORE_REDIS_URL=redis://localhost:6379/0
//	VIDGATE_TOKEN_MODE=signed
//	VIDGATE_TOKEN_SECRET=...
//	VIDGATE_CLIENT_AUTHORITY_URL=https://license.example.com
//
// Missing store credentials are not a load error. The authority starts and
// reports server_error per request, so that a misconfigured deployment is
// observable from the client.
package config
