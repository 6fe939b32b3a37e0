// Package textutil provides text normalization and similarity helpers used
// by entity matching.
//
// The primary use cases are:
//   - Normalizing sheet numbers and titles so revisions with different
//     punctuation or casing compare equal ("A-101" vs "A101")
//   - Collapsing OCR text into stable signatures for block comparison
//   - Creating token-based fingerprints and computing cosine similarity
//     for the optional fuzzy title pass
//
// Fingerprints use term frequency vectors normalized for efficient
// comparison. Tokenization lowercases text, splits on non-alphanumeric
// characters, and filters very short tokens.
package textutil
