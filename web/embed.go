// Package web holds the built dashboard.
package web

import "embed"

// DistFS is the dashboard build output under dist/.
//
//go:embed dist
var DistFS embed.FS
