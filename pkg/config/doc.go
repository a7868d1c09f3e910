// Package config provides application configuration management.
//
// # Overview
//
// Configuration is layered: built-in defaults, then an optional YAML file
// named by RBAC_CONFIG_FILE, then environment variables. Environment always
// wins.
//
// # Configuration Structure
//
// Server settings:
//
//	RBAC_HOST="0.0.0.0"
//	RBAC_PORT="8080"
//	RBAC_HEALTH_PORT="9090"
//	RBAC_READ_TIMEOUT="15s"
//	RBAC_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	RBAC_DATABASE_URL="postgres://localhost/rbac?sslmode=disable"
//	RBAC_DATABASE_MAX_OPEN_CONNS="25"
//
// Cache settings:
//
//	RBAC_REDIS_ENABLED="true"
//	RBAC_REDIS_ADDR="localhost:6379"
//
// Gateway settings:
//
//	RBAC_DIRECTORY_URL="https://bop.example.com"
//	RBAC_SSO_URL="https://sso.example.com"
//	RBAC_ISSUER_URL="https://sso.example.com/auth/realms/rbac"
//	RBAC_CLIENT_ID="rbac"
//	RBAC_CLIENT_SECRET="..."
//
// Audit settings:
//
//	RBAC_AUDIT_RETENTION_DAYS="90"
//	RBAC_AUDIT_CLEANUP_SCHEDULE="0 3 * * *"
//
// Observability settings:
//
//	RBAC_LOG_LEVEL="info"  # debug, info, warn, error
//	RBAC_METRICS_ENABLED="true"
//	RBAC_OTEL_ENABLED="true"
//	RBAC_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/observability: Uses observability configuration
//   - cmd/rbac-server: Wires all configuration sections
package config
