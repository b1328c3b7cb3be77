// Package migrations embeds the event store schema: the status and history
// event tables, the event_log audit table and the migrations ledger.
//
// Each dialect keeps its own numbered files; internal/core/db applies them in
// file name order and records a checksum per file.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
