// Package extract derives searchable metadata from uploaded documents.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"

	// MaxExcerpt bounds the stored text, in runes.
	MaxExcerpt = 4000
)

var ErrUnsupported = errors.New("unsupported mime type")

// Metadata is the searchable summary stored with a document.
type Metadata struct {
	Text      string `json:"text,omitempty"`
	PageCount int    `json:"pageCount,omitempty"`
}

// FromBytes extracts metadata from an in-memory payload. Formats without a
// text layer return ErrUnsupported wrapped with the resolved mime type.
func FromBytes(ctx context.Context, data []byte, mimeType, fileName string) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}
	normalized := normalizeMimeType(mimeType, fileName, data)
	var (
		md  Metadata
		err error
	)
	switch normalized {
	case mimePDF:
		md, err = extractPDF(data)
	case mimeDOCX:
		md, err = extractDOCX(data)
	case mimeText:
		if !utf8.Valid(data) {
			return Metadata{}, fmt.Errorf("%w: %s (invalid utf-8)", ErrUnsupported, normalized)
		}
		md = Metadata{Text: string(data), PageCount: 1}
	default:
		return Metadata{}, fmt.Errorf("%w: %s", ErrUnsupported, normalized)
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("extract %s: %w", normalized, err)
	}
	md.Text = Excerpt(md.Text, MaxExcerpt)
	return md, nil
}

// Excerpt collapses whitespace runs and truncates s to at most n runes.
func Excerpt(s string, n int) string {
	var b strings.Builder
	space := false
	count := 0
	for _, r := range s {
		if count >= n {
			break
		}
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			if count+1 >= n {
				break
			}
			b.WriteByte(' ')
			count++
			space = false
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

func extractPDF(data []byte) (Metadata, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Metadata{}, err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return Metadata{}, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Metadata{}, err
	}
	return Metadata{Text: buf.String(), PageCount: reader.NumPage()}, nil
}

func extractDOCX(data []byte) (Metadata, error) {
	if len(data) == 0 {
		return Metadata{}, errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Metadata{}, err
	}

	var docFile *zip.File
	pages := 0
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			docFile = f
		case "docProps/app.xml":
			pages = readAppPages(f)
		}
	}
	if docFile == nil {
		return Metadata{}, errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return Metadata{}, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Text: stripDocxXML(string(raw)), PageCount: pages}, nil
}

// readAppPages reads the page count Word records in docProps/app.xml.
func readAppPages(f *zip.File) int {
	rc, err := f.Open()
	if err != nil {
		return 0
	}
	defer rc.Close()
	var props struct {
		Pages int `xml:"Pages"`
	}
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return 0
	}
	return props.Pages
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeMimeType(mimeType, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case "application/zip", "application/octet-stream", "":
	default:
		return clean
	}

	if isDOCX(data) {
		return mimeDOCX
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".docx":
		return mimeDOCX
	case ".pdf":
		return mimePDF
	case ".txt":
		return mimeText
	}
	return clean
}

func isDOCX(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
