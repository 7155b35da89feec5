// Package main hosts the emotrack CLI entrypoint and command graph.
//
// The Cobra command tree records sessions in the foreground, serves the HTTP
// API and analysis proxy, browses the session archive and renders reports.
// Configuration resolution and logger setup are centralized in the command
// context so subcommands only deal with presentation.
package main
