// Package migrations embeds the document store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
