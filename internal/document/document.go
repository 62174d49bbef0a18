package document

import (
	"path/filepath"

	"github.com/paperledger/invoice-intake/constants"
)

// Document is a request-scoped invoice source: raw bytes plus the declared
// mime type. Pages is filled in once the source has been opened; zero means
// not yet counted.
type Document struct {
	Data     []byte
	MimeType string
	Pages    int
}

// New builds a Document from raw bytes and a declared mime type.
func New(data []byte, mimeType string) Document {
	return Document{Data: data, MimeType: mimeType}
}

// FromPath builds a Document, deriving the mime type from the file extension.
// The caller supplies the bytes; no file I/O happens here.
func FromPath(path string, data []byte) Document {
	return Document{
		Data:     data,
		MimeType: constants.MapExtToMime(filepath.Ext(path)),
	}
}

// IsPDF reports whether the declared mime type is a PDF.
func (d Document) IsPDF() bool {
	return d.MimeType == "application/pdf"
}
