// Package acquire implements the pipeline's first stage: validating and
// normalizing an arbitrary uploaded file (PDF or image) into a single PDF in
// the run's working area (spec §4.1 "Acquire").
package acquire

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

// allowedExtensions is the closed set of accepted input formats.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Result is the outcome of Acquire: the path to the normalized PDF in the
// run's working area, plus bookkeeping for the artifact record.
type Result struct {
	PDFPath          string
	OriginalFilename string
	ByteSize         int64
	PageCount        int
}

// Acquire copies sourcePath into workDir, converting single images into a
// one-page PDF, and rejects unsupported extensions or over-long PDFs.
func Acquire(sourcePath, originalFilename, workDir string, maxPages int) (Result, *pipelineerr.Error) {
	ext := filepath.Ext(originalFilename)
	if !allowedExtensions[normalizeExt(ext)] {
		return Result{}, pipelineerr.Client(pipelineerr.CodeUnsupportedMediaType, fmt.Errorf("unsupported extension %q", ext))
	}

	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		return Result{}, pipelineerr.Server(pipelineerr.CodeFileSaveFailed, true, err)
	}

	var pdfBytes []byte
	if normalizeExt(ext) == ".pdf" {
		pdfBytes = raw
	} else {
		pdfBytes, err = wrapImageAsPDF(raw)
		if err != nil {
			return Result{}, pipelineerr.Server(pipelineerr.CodeFileSaveFailed, false, err)
		}
	}

	pageCount := countPages(pdfBytes)
	if pageCount > maxPages {
		return Result{}, pipelineerr.Client(pipelineerr.CodePDFTooManyPages, fmt.Errorf("document has %d pages, limit %d", pageCount, maxPages))
	}

	destPath := filepath.Join(workDir, "acquired.pdf")
	if err := os.WriteFile(destPath, pdfBytes, 0o600); err != nil {
		return Result{}, pipelineerr.Server(pipelineerr.CodeFileSaveFailed, true, err)
	}

	return Result{
		PDFPath:          destPath,
		OriginalFilename: originalFilename,
		ByteSize:         int64(len(pdfBytes)),
		PageCount:        pageCount,
	}, nil
}

func normalizeExt(ext string) string {
	out := make([]byte, 0, len(ext))
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// pageMarker matches a `/Type /Page` object declaration, tolerating any
// amount of whitespace (including none) between the two name tokens: real
// PDF producers disagree on whether to pretty-print their dictionaries, and
// wrapImageAsPDF below emits the spaced form itself.
var pageMarker = regexp.MustCompile(`/Type\s*/Page`)

// countPages counts `/Type /Page` object declarations in the PDF, taking
// care to exclude `/Type /Pages` (the page-tree root). This reads the page
// index textually rather than rendering any content, matching spec §4.1's
// "without rendering" requirement; no PDF-parsing library is present
// anywhere in the reference corpus (see DESIGN.md).
func countPages(pdf []byte) int {
	count := 0
	for _, m := range pageMarker.FindAllIndex(pdf, -1) {
		after := m[1]
		if after >= len(pdf) || pdf[after] != 's' {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

// wrapImageAsPDF embeds a single JPEG or PNG image as the sole XObject of a
// minimal one-page PDF, at a fixed nominal page size (spec §4.1 "fixed
// DPI"). The corpus contains no PDF-generation library (see DESIGN.md), so
// this writes raw PDF object syntax directly.
func wrapImageAsPDF(imageData []byte) ([]byte, error) {
	const (
		pageWidth  = 612 // 8.5in at 72 DPI
		pageHeight = 792 // 11in at 72 DPI
	)
	filter, err := detectImageFilter(imageData)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	offsets := make([]int, 0, 5)

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	writeObj(fmt.Sprintf(
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Im0 4 0 R >> >> "+
			"/MediaBox [0 0 %d %d] /Contents 5 0 R >>\nendobj\n", pageWidth, pageHeight))
	writeObj(fmt.Sprintf(
		"4 0 obj\n<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB "+
			"/BitsPerComponent 8 /Filter /%s /Length %d >>\nstream\n", pageWidth, pageHeight, filter, len(imageData)))
	buf.Write(imageData)
	buf.WriteString("\nendstream\nendobj\n")

	content := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im0 Do Q", pageWidth, pageHeight)
	writeObj(fmt.Sprintf("5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content))

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", len(offsets)+1, xrefStart)

	return buf.Bytes(), nil
}

func detectImageFilter(data []byte) (string, error) {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "DCTDecode", nil
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "FlateDecode", nil
	default:
		return "", fmt.Errorf("unrecognized image magic bytes")
	}
}

// CopyToWorkDir copies an arbitrary reader into the file workDir/name and
// returns that file's path.
func CopyToWorkDir(src io.Reader, workDir, name string) (string, error) {
	dest := filepath.Join(workDir, name)
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return "", err
	}
	return dest, nil
}
