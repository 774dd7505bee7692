// Package config handles loading and validating vantage-sync configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional .env file
//   - Overriding with VANTAGE_* environment variables
//   - Validation of required fields and enumerations
//
// Security Considerations:
//   - Store tokens and passwords should be set via environment variables or .env
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Console.Host)
package config
