// Package config loads runtime configuration for the fluma CLI.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file named by the --config flag.
//  3. Command-line flags bound by the cli package.
//
// JSON schema:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_path": "fluma.db",
//	  "timeout": "10s"
//	}
package config
