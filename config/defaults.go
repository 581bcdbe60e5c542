// Package config embeds the default configuration file.
package config

import _ "embed"

// Default is the content of conf.default.yaml.
//
//go:embed conf.default.yaml
var Default []byte
