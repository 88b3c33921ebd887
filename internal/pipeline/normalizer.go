package pipeline

import "bytes"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NormalizeSource canonicalizes source bytes before hashing and parsing:
// the UTF-8 byte-order mark is stripped and CRLF line endings become LF.
//
// Artifact identity is content-based, and the same file checked out with
// different line-ending conventions must hash identically; otherwise every
// Windows checkout would invalidate the whole extraction cache.
func NormalizeSource(content []byte) []byte {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !bytes.Contains(content, []byte("\r\n")) {
		return content
	}
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}
