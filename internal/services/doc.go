// Package services defines shared utilities consumed by the capture pipeline
// and the external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, capture cycle numbers, service
//     names, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper. Markers drive the
//     propagation policy: configuration and device errors block a session
//     start and reach the operator; transient, timeout, and rate-limit errors
//     are recovered locally by the capture loop.
//
// The subpackages hold the concrete external clients: hume (emotion
// inference over websocket) and gemini (text generation over HTTP).
package services
