package share

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mandolyte/mdtopdf"
)

// WritePDF renders markdown into a PDF at pdfPath and returns its absolute
// path.
func WritePDF(markdown, pdfPath string) (string, error) {
	if !strings.HasSuffix(pdfPath, ".pdf") {
		return "", fmt.Errorf("output file must have .pdf extension: %s", pdfPath)
	}
	if dir := filepath.Dir(pdfPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("os.MkdirAll(%s) > %w", dir, err)
		}
	}

	renderer := mdtopdf.NewPdfRenderer("P", "A4", pdfPath, "", nil, mdtopdf.LIGHT)
	if err := renderer.Process([]byte(markdown)); err != nil {
		return "", fmt.Errorf("renderer.Process() > %w", err)
	}

	absPath, err := filepath.Abs(pdfPath)
	if err != nil {
		return pdfPath, nil
	}
	return absPath, nil
}

// RenderPDF renders markdown and returns the PDF bytes.
func RenderPDF(markdown string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "mindbank-pdf-")
	if err != nil {
		return nil, fmt.Errorf("os.MkdirTemp > %w", err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	path, err := WritePDF(markdown, filepath.Join(dir, "export.pdf"))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s) > %w", path, err)
	}
	return data, nil
}
