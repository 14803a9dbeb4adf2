// Package configs provides the embedded configuration template for
// imagevault.
//
// The template is embedded at build time with go:embed so it ships with
// every distribution, including plain `go install` builds. It is written
// to the data directory by `imagevault config init` and documents every
// supported key with its default.
package configs

import _ "embed"

// ConfigTemplate is the annotated default configuration. Written by
// `imagevault config init` as .imagevault.yaml in the data directory.
//
//go:embed default.yaml
var ConfigTemplate string
