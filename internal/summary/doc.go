// Package summary produces the end-of-session narrative.
//
// Requester sends one analyst prompt to the text-generation service, trying
// every generation key once in pool order (a quota sweep that ignores the
// rotation cooldown). When the sweep fails the session still gets a summary:
// Fallback builds a deterministic three-paragraph narrative from the digest
// alone. Short sessions skip generation entirely.
package summary
