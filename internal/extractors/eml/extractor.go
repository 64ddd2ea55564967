// Package eml extracts headers and body text from RFC 5322 email messages.
package eml

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/extractors/html"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles EML (email) documents.
type Extractor struct{}

// New creates a new EML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"message/rfc822"}
}

// Extract returns From/To/Date/Subject headers followed by the body.
// Plain text parts are preferred over HTML alternatives.
func (e *Extractor) Extract(_ context.Context, content []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: parse message: %w", domain.ErrInvalidInput, err)
	}

	body, err := extractBody(msg.Header, msg.Body)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, name := range []string{"From", "To", "Date", "Subject"} {
		if value := decodeHeader(msg.Header.Get(name)); value != "" {
			fmt.Fprintf(&out, "%s: %s\n", name, value)
		}
	}
	out.WriteString("\n")
	out.WriteString(body)

	return strings.TrimSpace(out.String()), nil
}

// header is the subset of mail.Header and textproto.MIMEHeader used here.
type header interface {
	Get(key string) string
}

func decodeHeader(value string) string {
	if value == "" {
		return ""
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// decodeTransfer undoes the part's Content-Transfer-Encoding.
func decodeTransfer(h header, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding"))) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

func extractBody(h header, r io.Reader) (string, error) {
	contentType := h.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipart(r, params["boundary"])
	}

	body, err := io.ReadAll(decodeTransfer(h, r))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrInvalidInput, err)
	}
	if mediaType == "text/html" {
		return html.Strip(string(body)), nil
	}
	return string(body), nil
}

func extractMultipart(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", nil
	}

	var textParts, htmlParts []string
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextRawPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		mediaType, params, parseErr := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if parseErr != nil {
			mediaType = "text/plain"
		}
		if strings.EqualFold(strings.TrimSpace(strings.SplitN(part.Header.Get("Content-Disposition"), ";", 2)[0]), "attachment") {
			part.Close()
			continue
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, nestedErr := extractMultipart(part, params["boundary"])
			if nestedErr == nil && nested != "" {
				textParts = append(textParts, nested)
			}
		case mediaType == "text/plain" || mediaType == "text/html":
			content, readErr := io.ReadAll(decodeTransfer(part.Header, part))
			if readErr != nil {
				break
			}
			if mediaType == "text/plain" {
				textParts = append(textParts, string(content))
			} else {
				htmlParts = append(htmlParts, html.Strip(string(content)))
			}
		}
		part.Close()
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}
