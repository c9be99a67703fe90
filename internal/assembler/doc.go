// Package assembler renders ranked retrieval results into a single
// token-budgeted text block suitable for injection into an agent's
// context window.
package assembler
