// Package web embeds the shell page templates and the static assets.
package web

import "embed"

// TemplatesFS holds the page templates and the shared layout partial.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds css, js and images under static/.
//
//go:embed static
var StaticFS embed.FS
