// Package chunkid provides deterministic identifiers for the chunks of a vault file.
package chunkid

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// DocumentIndex is the chunk index reserved for the whole-document chunk.
// Sections are numbered from 1 in parse order.
const DocumentIndex = 0

// Length is the length of every id returned by For.
const Length = sha1.Size * 2

// separator cannot appear in a vault key or a path.
const separator = "\x00"

// For returns the id of the chunk at index of the file at path in the given vault.
// The same arguments always yield the same 40 character hex id.
func For(vaultKey, path string, index int) string {
	h := sha1.New()
	h.Write([]byte(vaultKey))
	h.Write([]byte(separator))
	h.Write([]byte(path))
	h.Write([]byte(separator))
	h.Write([]byte(strconv.Itoa(index)))
	return hex.EncodeToString(h.Sum(nil))
}
