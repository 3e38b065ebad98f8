// Package config provides configuration structures and utilities for spinneret.
// It defines the Settings struct consumed by the engine, scheduler, and
// middleware constructors, along with YAML file loading and validation.
//
// Settings are built once at startup and passed by reference through the
// constructors; there is no mutable process-wide configuration state.
package config
