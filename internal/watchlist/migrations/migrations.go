// Package migrations 内嵌监控列表数据库的 goose 迁移脚本。
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
