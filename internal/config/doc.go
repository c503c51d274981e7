// Package config defines the runtime configuration shared by every mission
// executed in a session, its defaults, and a viper-backed file loader with
// BURSTMISSION_* environment overrides.
package config
