// Package notifications delivers session events via ntfy.
//
// The ntfy topic comes from config.toml; without one the service degrades to
// a no-op. Events are enumerated so the session controller and CLI emit
// consistent messages without duplicating HTTP glue, and the notifications
// config section can mute whole event classes.
package notifications
