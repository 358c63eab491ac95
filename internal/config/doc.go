// Package config provides configuration structures and utilities for coursegrab.
// It defines the options of a grab run, the per-site YAML configuration file
// with authentication cookies and headers, and the XDG directory layout.
package config
