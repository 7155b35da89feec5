// Package sessionstore archives completed recordings in SQLite.
//
// Each session row carries the summary, its source, and headline statistics;
// observations live in a child table ordered by sequence number and are
// removed with their session. Schema changes ship as embedded, ordered SQL
// migrations tracked in schema_migrations.
package sessionstore
