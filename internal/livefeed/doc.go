// Package livefeed distributes the "current" observation of a recording to
// live consumers: an in-process Hub, a websocket endpoint for browsers and
// dashboards, and an optional Redis pub/sub mirror guarded by a circuit
// breaker. Publishing never blocks the capture loop.
package livefeed
