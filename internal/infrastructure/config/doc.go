// Package config loads the bridge configuration.
//
// Values are layered: Default, then the YAML file, then SOLARBRIDGE_*
// environment variables, then command-line flags applied by cmd/solarbridge.
// Validate runs last and reports every problem in one error.
//
// Keep the MQTT password and InfluxDB token out of the file where possible;
// SOLARBRIDGE_MQTT_PASSWORD and SOLARBRIDGE_INFLUXDB_TOKEN cover them.
//
//	cfg, err := config.Load("/etc/solarbridge/config.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
