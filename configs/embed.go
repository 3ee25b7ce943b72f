// Package configs embeds the configuration template written by
// `feedsearch config init`.
package configs

import _ "embed"

// ConfigTemplate documents every config key with its default, all
// commented out.
//
//go:embed config.example.yaml
var ConfigTemplate string
