// Package hume talks to the Hume emotion-inference service.
//
// Client performs one websocket exchange per frame against the streaming
// models endpoint. Each exchange resolves to a tagged Result: Success with the
// face emotions, or one of RateLimited, Empty, Timeout, and TransportError,
// all of which mean "no result" to the caller. Rate-limit and transport
// failures rotate the inference credential pool; the cooldown in the pool
// keeps a burst of failures from cycling through every key at once.
//
// BatchClient uploads a single image to the batch jobs endpoint and backs the
// server-side analysis proxy.
package hume
