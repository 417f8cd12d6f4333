// Package nowcord provides embedded assets for the Nowcord daemon.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML]. cmd/nowcord copies it into the data directory
// on first run so users start from a documented config file.
package nowcord

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, embedded at
// build time.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
