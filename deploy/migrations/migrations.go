// Package migrations embeds the versioned MySQL schema for the run store.
// Files are named <version>_<name>.sql and applied in version order.
package migrations

import "embed"

// Files 暴露所有 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
