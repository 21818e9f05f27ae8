// Package chunks accumulates encoded media segments and assembles the final
// deliverable blob.
//
// The aggregator is purely additive: chunks are kept in arrival order, the
// byte total never decreases, and the assembled blob freezes the sequence.
package chunks
