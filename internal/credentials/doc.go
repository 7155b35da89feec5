// Package credentials manages the ordered API keys of one external service.
//
// A Pool exposes the active key, a cooldown-gated Rotate used when a single
// exchange fails, and a cooldown-free Advance used by quota sweeps that try
// every key once for a single logical request. Inference and generation each
// own a separate Pool; pools never share state.
package credentials
