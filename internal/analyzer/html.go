package analyzer

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// document holds the HTML signals read in a single tokenizer pass.
type document struct {
	text      string
	title     string
	generator string
	scripts   []string
}

// decode converts body to UTF-8 using the Content-Type charset or a
// <meta charset> declaration. Undecodable input is returned as-is.
func decode(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// parseDocument tokenizes text and collects the first <title>, the meta
// generator and every <script src>.
func parseDocument(text string) document {
	doc := document{text: text}
	if text == "" {
		return doc
	}

	tokenizer := html.NewTokenizer(strings.NewReader(text))
	var title strings.Builder
	inTitle := false
	titleDone := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; either way we use what we have.
			if inTitle && !titleDone {
				doc.title = cleanText(title.String())
			}
			return doc

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				if !titleDone {
					inTitle = true
				}
			case "meta":
				if doc.generator == "" && strings.EqualFold(attr(token, "name"), "generator") {
					doc.generator = cleanText(attr(token, "content"))
				}
			case "script":
				if src := strings.TrimSpace(attr(token, "src")); src != "" {
					doc.scripts = append(doc.scripts, src)
				}
			}

		case html.TextToken:
			if inTitle {
				title.Write(tokenizer.Text())
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if inTitle && string(name) == "title" {
				inTitle = false
				titleDone = true
				doc.title = cleanText(title.String())
			}
		}
	}
}

// attr returns the value of the named attribute. The tokenizer lowercases
// attribute keys.
func attr(token html.Token, key string) string {
	for _, a := range token.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// cleanText trims surrounding whitespace. Entities are already decoded by
// the tokenizer.
func cleanText(s string) string {
	return strings.TrimSpace(s)
}
