package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// attachmentSeparator marks where body text ends and attachment text
	// begins inside the concatenated document text.
	attachmentSeparator = "\n\n--- CONTEÚDO DO ANEXO ---\n\n"

	docxDocumentXMLPath = "word/document.xml"
)

// wtTag matches <w:t>text</w:t> including variants with attributes such as
// <w:t xml:space="preserve">.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// ExtractAttachmentText extracts plain text from an attachment by MIME type.
// Unsupported types yield an empty contribution with a logged warning rather
// than an error: a document whose attachment cannot be parsed still gets its
// body indexed.
func ExtractAttachmentText(logger *slog.Logger, data []byte, mimeType string) string {
	if len(data) == 0 {
		return ""
	}

	switch mimeType {
	case mimePDF:
		text, err := extractPDF(data)
		if err != nil {
			logger.Warn("failed to extract PDF attachment text", "error", err)
			return ""
		}
		return text
	case mimeDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			logger.Warn("failed to extract DOCX attachment text", "error", err)
			return ""
		}
		return text
	default:
		logger.Warn("unsupported attachment type for text extraction", "mime", mimeType)
		return ""
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to buffer PDF text: %w", err)
	}
	return buf.String(), nil
}

// extractDOCX reads the OOXML main document part and collects all <w:t> text
// nodes. Scanning text nodes directly keeps content extractable regardless of
// paragraph or run attributes.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a zip archive: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentXMLPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		docXML = buf.Bytes()
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("%s not found", docxDocumentXMLPath)
	}

	parts := wtTag.FindAllStringSubmatch(string(docXML), -1)
	if len(parts) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(p[1]))
	}
	return strings.TrimSpace(b.String()), nil
}
