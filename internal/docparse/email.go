package docparse

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// parseEmail reads an RFC 822 message: From, To, Subject and Date into
// the metadata, the body as plain text. Multipart messages prefer the
// text/plain part; an HTML-only body is stripped to text.
func parseEmail(data []byte) (string, map[string]string, error) {
	message, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("reading email: %w", err)
	}

	metadata := map[string]string{}
	for _, key := range []string{"From", "To", "Subject"} {
		if value := message.Header.Get(key); value != "" {
			metadata[strings.ToLower(key)] = decodeHeader(value)
		}
	}
	if raw := message.Header.Get("Date"); raw != "" {
		metadata["date"] = normalizeMailDate(raw)
	}

	content, err := emailBody(message)
	if err != nil {
		return "", nil, err
	}
	return content, metadata, nil
}

// decodeHeader unpacks RFC 2047 encoded words, keeping the raw value
// when decoding fails.
func decodeHeader(value string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// normalizeMailDate renders the Date header as RFC 3339. Nonstandard
// headers go through the lenient parser; unparseable values pass
// through as written.
func normalizeMailDate(raw string) string {
	if when, err := mail.ParseDate(raw); err == nil {
		return when.UTC().Format(time.RFC3339)
	}

	parser := dps.Parser{}
	if parsed, err := parser.Parse(&dps.Configuration{}, raw); err == nil && !parsed.IsZero() {
		return parsed.Time.UTC().Format(time.RFC3339)
	}
	return strings.TrimSpace(raw)
}

func emailBody(message *mail.Message) (string, error) {
	mediaType := "text/plain"
	var params map[string]string
	if contentType := message.Header.Get("Content-Type"); contentType != "" {
		if parsed, p, err := mime.ParseMediaType(contentType); err == nil {
			mediaType, params = parsed, p
		}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartBody(message.Body, params["boundary"])
	}

	body, err := io.ReadAll(message.Body)
	if err != nil {
		return "", fmt.Errorf("reading email body: %w", err)
	}
	text := decodeTransfer(body, message.Header.Get("Content-Transfer-Encoding"))
	if mediaType == "text/html" {
		stripped, _ := parseHTML([]byte(text))
		return stripped, nil
	}
	return sanitizeText([]byte(text)), nil
}

// multipartBody walks the parts looking for text/plain, keeping the
// first stripped text/html part as the fallback. Nested multipart
// containers are descended into.
func multipartBody(body io.Reader, boundary string) (string, error) {
	if boundary == "" {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("reading email body: %w", err)
		}
		return sanitizeText(raw), nil
	}

	reader := multipart.NewReader(body, boundary)
	htmlFallback := ""
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever was readable before the malformed part.
			break
		}

		mediaType := "text/plain"
		var params map[string]string
		if contentType := part.Header.Get("Content-Type"); contentType != "" {
			if parsed, p, perr := mime.ParseMediaType(contentType); perr == nil {
				mediaType, params = parsed, p
			}
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if nested, nerr := multipartBody(part, params["boundary"]); nerr == nil && nested != "" {
				return nested, nil
			}
			continue
		}

		raw, rerr := io.ReadAll(part)
		if rerr != nil {
			continue
		}
		text := decodeTransfer(raw, part.Header.Get("Content-Transfer-Encoding"))

		if mediaType == "text/plain" {
			return sanitizeText([]byte(text)), nil
		}
		if mediaType == "text/html" && htmlFallback == "" {
			stripped, _ := parseHTML([]byte(text))
			htmlFallback = stripped
		}
	}
	return htmlFallback, nil
}

// decodeTransfer undoes base64 and quoted-printable transfer
// encodings, passing the body through untouched when decoding fails.
func decodeTransfer(body []byte, encoding string) string {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		compact := strings.Join(strings.Fields(string(body)), "")
		if decoded, err := base64.StdEncoding.DecodeString(compact); err == nil {
			return string(decoded)
		}
	case "quoted-printable":
		if decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body))); err == nil {
			return string(decoded)
		}
	}
	return string(body)
}
