// Package textutil normalizes operator-entered identifiers.
//
// Powder names and lot numbers are typed at several stations, often in
// Korean, and the same identifier must hash to the same database key no
// matter which IME produced it. NormalizeKey applies Unicode NFC and
// trims surrounding whitespace; SplitLots additionally splits composite
// lot fields on commas.
package textutil
