// Package config handles loading and validating the registry configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and liveness timing
//   - Default value handling
//
// Liveness defaults: a device is marked offline after 90 seconds of silence,
// and the sweeper checks every 15 seconds.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Registry.OfflineTimeout)
package config
