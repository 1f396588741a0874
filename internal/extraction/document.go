package extraction

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Accepted statement media types.
const (
	MediaPDF  = "application/pdf"
	MediaXLS  = "application/vnd.ms-excel"
	MediaXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaCSV  = "text/csv"
	MediaText = "text/plain"
)

var extMediaTypes = map[string]string{
	".pdf":  MediaPDF,
	".xls":  MediaXLS,
	".xlsx": MediaXLSX,
	".csv":  MediaCSV,
	".txt":  MediaText,
}

// Document is an uploaded statement held in memory.
type Document struct {
	Name      string
	MediaType string
	Data      []byte
}

// ReadDocument reads at most maxBytes from r and resolves the media type
// from the declared type, the file extension and finally the content.
func ReadDocument(name, declared string, r io.Reader, maxBytes int64) (Document, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return Document{}, fmt.Errorf("%w: limit is %d bytes", ErrDocumentTooLarge, maxBytes)
	}
	doc := Document{Name: name, Data: data}
	if err := doc.resolve(declared); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (d *Document) resolve(declared string) error {
	if len(d.Data) == 0 {
		return ErrEmptyDocument
	}
	mt := DetectMediaType(d.Name, declared, d.Data)
	if mt == "" {
		return fmt.Errorf("%w: %s", ErrUnsupportedMediaType, d.Name)
	}
	d.MediaType = mt
	return nil
}

// Validate checks a Document built without ReadDocument.
func (d Document) Validate() error {
	if len(d.Data) == 0 {
		return ErrEmptyDocument
	}
	if !supported(d.MediaType) {
		return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, d.MediaType)
	}
	return nil
}

// DetectMediaType returns the accepted media type for the upload, or ""
// when none matches.
func DetectMediaType(name, declared string, data []byte) string {
	if mt := normalize(declared); supported(mt) {
		return mt
	}
	if mt, ok := extMediaTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	if len(data) == 0 {
		return ""
	}
	switch sniffed := normalize(http.DetectContentType(data)); sniffed {
	case MediaPDF, MediaText:
		return sniffed
	}
	return ""
}

func normalize(mt string) string {
	if mt == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return ""
	}
	if parsed == "application/csv" {
		return MediaCSV
	}
	return parsed
}

func supported(mt string) bool {
	for _, v := range extMediaTypes {
		if v == mt {
			return true
		}
	}
	return false
}

// IsText reports whether the document can be sent as plain text.
func (d Document) IsText() bool {
	return d.MediaType == MediaCSV || d.MediaType == MediaText
}

// Base64 returns the standard Base64 encoding of the content.
func (d Document) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Data)
}

// DataURI returns the content as data:<media type>;base64,<data>.
func (d Document) DataURI() string {
	return "data:" + d.MediaType + ";base64," + d.Base64()
}
