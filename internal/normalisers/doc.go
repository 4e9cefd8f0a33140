// Package normalisers provides implementations of the Normaliser interface
// for the supported document formats. Each normaliser splits a raw document
// of a specific MIME type into pages of text, blocks and images.
//
// Normalisers are registered with the NormaliserRegistry at startup.
package normalisers
