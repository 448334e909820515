// Package htmltext converts chat-service HTML message bodies to plain text.
package htmltext

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Strip converts an HTML message body to readable plain text. Block
// elements become newlines, quoted replies (blockquote) are dropped,
// entities are decoded, and whitespace is collapsed. File attachment
// payloads (URIObject) are summarized as "[file: name]".
func Strip(raw string) string {
	z := html.NewTokenizer(strings.NewReader(raw))

	var b strings.Builder
	blockquoteDepth := 0
	var fileName, fileSize string
	sawFileObject := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()
		name := strings.ToLower(tok.Data)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			switch name {
			case "blockquote":
				if tt == html.StartTagToken {
					blockquoteDepth++
				}
			case "br":
				if blockquoteDepth == 0 {
					b.WriteByte('\n')
				}
			case "uriobject":
				sawFileObject = true
			case "originalname":
				if v := attr(tok, "v"); v != "" {
					fileName = v
				}
			case "filesize":
				if v := attr(tok, "v"); v != "" {
					fileSize = v
				}
			}
		case html.EndTagToken:
			switch name {
			case "blockquote":
				if blockquoteDepth > 0 {
					blockquoteDepth--
				}
			case "p", "div", "li":
				if blockquoteDepth == 0 {
					b.WriteByte('\n')
				}
			}
		case html.TextToken:
			if blockquoteDepth == 0 {
				b.WriteString(tok.Data)
			}
		}
	}

	if sawFileObject && fileName != "" {
		if fileSize != "" {
			return fmt.Sprintf("[file: %s (%s bytes)]", fileName, fileSize)
		}
		return fmt.Sprintf("[file: %s]", fileName)
	}

	return collapse(b.String())
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// collapse squeezes runs of spaces and tabs within each line and trims
// trailing whitespace, preserving line structure.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
