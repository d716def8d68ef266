// Package migrations embeds the round history schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
