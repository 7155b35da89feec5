// Package server exposes emotrack over HTTP with echo.
//
// Routes cover the analysis proxy (POST /api/analyze-emotion), session
// control and history under /api, the live observation websocket, Prometheus
// metrics, and health probes. The proxy holds its own credential pool so
// browser clients never see inference keys.
package server
