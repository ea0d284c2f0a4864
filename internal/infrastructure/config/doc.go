// Package config handles loading and validating Gray Logic node configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and timing relationships
//   - Default value handling
//
// Security Considerations:
//   - The Wi-Fi passphrase, MQTT password, JWT secret and InfluxDB token
//     should be set via GLNODE_* environment variables
//   - The config file should have restricted permissions (0600)
//
// Configuration is loaded once at boot and is immutable afterwards.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ID)
package config
