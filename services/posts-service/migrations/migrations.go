// Package migrations embeds the posts-service schema for golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
