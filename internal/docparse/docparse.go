// Package docparse extracts plain text and metadata from uploaded
// documents ahead of entity extraction. Parsers are deliberately
// lenient: a partially readable document beats a failed workflow.
package docparse

import (
	"mime"
	"path/filepath"
	"strings"
)

// Document types steering the extraction prompt
const (
	TypeEmail     = "email"
	TypeSECFiling = "sec_filing"
	TypeGeneral   = "general"
)

// typeScanWindow bounds how far document type detection reads into the
// content.
const typeScanWindow = 10000

// Parsed is the text and metadata pulled out of one document
type Parsed struct {
	Content      string            `json:"content"`
	MimeType     string            `json:"mime_type"`
	Metadata     map[string]string `json:"metadata"`
	DocumentType string            `json:"document_type"`
}

var mimeBySuffix = map[string]string{
	".pdf":  "application/pdf",
	".html": "text/html",
	".htm":  "text/html",
	".eml":  "message/rfc822",
	".msg":  "application/vnd.ms-outlook",
	".txt":  "text/plain",
}

// Parse extracts text and metadata from an uploaded file. The MIME
// type derives from the filename suffix, falling back to the provided
// content type. Unknown types are treated as plain text.
func Parse(data []byte, filename, contentType string) (*Parsed, error) {
	mimeType := mimeTypeFor(filename, contentType)

	var (
		content  string
		metadata map[string]string
		err      error
	)
	switch mimeType {
	case "application/pdf":
		content, metadata, err = parsePDF(data)
	case "text/html":
		content, metadata = parseHTML(data)
	case "message/rfc822":
		content, metadata, err = parseEmail(data)
	case "application/vnd.ms-outlook":
		content, metadata = parseMsg(data)
	default:
		content = sanitizeText(data)
		metadata = map[string]string{}
	}
	if err != nil {
		return nil, err
	}

	return &Parsed{
		Content:      content,
		MimeType:     mimeType,
		Metadata:     metadata,
		DocumentType: detectDocumentType(filename, content, metadata),
	}, nil
}

// mimeTypeFor maps the filename suffix to a MIME type, preferring the
// fixed suffix table over whatever the client claimed.
func mimeTypeFor(filename, contentType string) string {
	suffix := strings.ToLower(filepath.Ext(filename))
	if mimeType, ok := mimeBySuffix[suffix]; ok {
		return mimeType
	}
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			return mediaType
		}
		return contentType
	}
	if byExt := mime.TypeByExtension(suffix); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}

// detectDocumentType classifies the document for prompt selection:
// email by suffix or mail headers, SEC filing by form markers in the
// leading text, general otherwise.
func detectDocumentType(filename, content string, metadata map[string]string) string {
	suffix := strings.ToLower(filepath.Ext(filename))
	if suffix == ".eml" || suffix == ".msg" {
		return TypeEmail
	}
	if metadata["subject"] != "" || metadata["from"] != "" {
		return TypeEmail
	}

	window := content
	if len(window) > typeScanWindow {
		window = window[:typeScanWindow]
	}
	upper := strings.ToUpper(window)
	if strings.Contains(upper, "FORM 10-K") ||
		strings.Contains(upper, "FORM 10-Q") ||
		strings.Contains(upper, "FORM 8-K") {
		return TypeSECFiling
	}
	return TypeGeneral
}

// sanitizeText returns the bytes as UTF-8 text, replacing invalid
// sequences and dropping NUL bytes.
func sanitizeText(data []byte) string {
	text := strings.ToValidUTF8(string(data), "�")
	return strings.ReplaceAll(text, "\x00", "")
}
