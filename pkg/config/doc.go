// Package config loads the node configuration.
//
// A minimal weft.yaml:
//
//	capacity: 5000
//	history: true
//	log_level: debug
//	diagnostics:
//	  addr: 127.0.0.1:9470
//	redis:
//	  addr: localhost:6379
//	  ttl: 24h
//	archive:
//	  redact: ['\d+\.\d+\.\d+\.\d+']
//	  key: <32 random bytes, base64>
package config
