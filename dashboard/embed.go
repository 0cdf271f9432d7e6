// Package dashboard provides the embedded web UI for the collector's HTTP
// server.
//
// The page lists every chart with the latest value of each plug and follows
// commits live over Server-Sent Events. It is compiled into the binary, so
// the plugin stays a single file.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Readings page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
