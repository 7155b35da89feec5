// Package report renders archived sessions for people and spreadsheets.
//
// Table output uses go-pretty rounded tables for the terminal, markdown output
// reuses the same tables in markdown form, and csv exports every observation.
package report
