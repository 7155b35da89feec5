// Package config loads, normalizes, and validates emotrack configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the two
// credential pools (HUME_API_KEY_1..10 and GEMINI_API_KEY_1..3) plus the proxy
// credentials (HUME_API_KEY, HUME_SECRET_KEY). Blank credential entries are
// filtered out so downstream pools only ever see usable keys.
//
// An empty credential list is deliberately not a load error: the session
// controller reports it as a configuration error when recording starts.
package config
