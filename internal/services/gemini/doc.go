// Package gemini calls the Gemini generateContent endpoint to turn a session
// digest prompt into narrative text. The client is stateless with respect to
// credentials; summary.Requester sweeps the generation key pool and decides
// what each StatusError means.
package gemini
