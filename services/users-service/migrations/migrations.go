// Package migrations embeds the users-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
