// Package config loads, normalizes, and validates allsky configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// worker daemon and CLI need: image and data directories, the build lock
// location, timelapse encoder settings, keogram geometry, stacking
// registration parameters, and upload hand-off switches.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
