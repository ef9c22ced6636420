package docparse

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// parseHTML tokenizes the document, dropping script and style bodies
// and collapsing whitespace. The title lands in the metadata.
func parseHTML(data []byte) (string, map[string]string) {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))
	metadata := map[string]string{}

	var parts []string
	var title strings.Builder
	skipDepth := 0
	inTitle := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			content := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
			if t := strings.Join(strings.Fields(title.String()), " "); t != "" {
				metadata["title"] = t
			}
			return content, metadata

		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skipDepth++
			case "title":
				inTitle = true
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				if skipDepth > 0 {
					skipDepth--
				}
			case "title":
				inTitle = false
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if inTitle {
				title.WriteString(text)
				continue
			}
			parts = append(parts, text)
		}
	}
}
