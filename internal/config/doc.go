// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Variables may come from the process environment or a .env file loaded with LoadEnv;
// values already set in the environment take precedence.
//
// Example:
//
//	homee:
//	  url: http://192.168.1.20:7681
//	  username: exporter
//	  password: ${HOMEE_PASSWORD}
//	connection:
//	  ping_interval: 30s
//	  reconnect:
//	    max_attempts: 3
//	metrics:
//	  port: 9090
//	  only_group: 0
package config
