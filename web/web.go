// Package web embeds the browser front end.
package web

import "embed"

// DistFS holds the built front end under dist/.
//
//go:embed dist
var DistFS embed.FS
