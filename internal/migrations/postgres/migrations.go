// Package postgres embeds the SQL migrations applied to the postgres database
// backing the session store, grounded on the pack's embedded-iofs migration
// pattern (pkg/store/metadata/postgres in the example corpus).
package postgres

import "embed"

//go:embed *.sql
var FS embed.FS
