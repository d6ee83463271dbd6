package league

import (
	"bytes"
	"io"
	"regexp"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// charsetRe matches both declaration forms, <meta charset="..."> and the
// legacy <meta http-equiv> content attribute.
var charsetRe = regexp.MustCompile(`(?i)charset=["']?\s*([a-zA-Z0-9_.:-]+)`)

// sniffLimit bounds the charset scan; declarations sit in <head>.
const sniffLimit = 1024

// DecodeHTML re-encodes a page as UTF-8 when its meta tags declare a
// different charset. Pages with no declaration, an unknown charset name, or
// undecodable content pass through unchanged; a wrong guess must never lose
// the page.
func DecodeHTML(page []byte) []byte {
	name := sniffCharset(page)
	if name == "" {
		return page
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return page
	}
	if canonical, err := htmlindex.Name(enc); err == nil && canonical == "utf-8" {
		return page
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(page), enc.NewDecoder()))
	if err != nil {
		return page
	}
	return decoded
}

func sniffCharset(page []byte) string {
	head := page
	if len(head) > sniffLimit {
		head = head[:sniffLimit]
	}
	m := charsetRe.FindSubmatch(head)
	if m == nil {
		return ""
	}
	return string(m[1])
}
