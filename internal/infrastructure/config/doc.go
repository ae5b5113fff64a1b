// Package config loads and validates Latchkey Core configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by LATCHKEY_* environment variables. A single
// Config value is produced at startup and passed by value to the
// components that need each section; nothing re-reads the file at runtime.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//
// Secrets (MQTT credentials, InfluxDB token) should be supplied through
// environment variables rather than committed to the config file.
package config
