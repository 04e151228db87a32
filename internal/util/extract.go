package util

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported resume file type")
	ErrNoTextExtracted     = errors.New("no text could be extracted from the resume")
)

// CollapseWhitespace trims s and replaces every run of whitespace with a
// single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractResumeText turns an uploaded resume into normalized plain text.
// Plain text files pass through; PDFs use the text layer and fall back to
// OCR for scanned documents.
func ExtractResumeText(fileName string, data []byte) (string, error) {
	var (
		raw string
		err error
	)

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt", ".text", ".md":
		raw = string(data)
	case ".pdf":
		raw, err = extractPDF(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(fileName))
	}
	if err != nil {
		return "", err
	}

	text := CollapseWhitespace(raw)
	if text == "" {
		return "", ErrNoTextExtracted
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var fullText strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		pageText, err := doc.Text(n)
		if err != nil {
			zap.S().Warnw("failed to read PDF text layer", "page", n+1, "error", err)
			continue
		}
		fullText.WriteString(pageText)
		fullText.WriteString("\n")
	}

	if text := strings.TrimSpace(fullText.String()); text != "" {
		return text, nil
	}

	zap.S().Infow("PDF has no text layer, falling back to OCR", "pages", doc.NumPage())
	return ocrDocument(doc)
}

// ocrDocument renders every page and runs it through tesseract.
func ocrDocument(doc *fitz.Document) (string, error) {
	if err := checkTesseract(); err != nil {
		return "", fmt.Errorf("tesseract check failed: %w", err)
	}

	var fullText strings.Builder
	var lastErr error

	for n := 0; n < doc.NumPage(); n++ {
		pageText, err := ocrPage(doc, n)
		if err != nil {
			lastErr = fmt.Errorf("page %d: %w", n+1, err)
			zap.S().Warn(lastErr)
			continue
		}

		if len(pageText) > 0 {
			fullText.WriteString(pageText)
			fullText.WriteString("\n\n")
		}
	}

	result := strings.TrimSpace(fullText.String())
	if len(result) == 0 {
		if lastErr != nil {
			return "", fmt.Errorf("failed to extract text via OCR: %w", lastErr)
		}
		return "", ErrNoTextExtracted
	}

	zap.S().Infof("OCR extracted %d chars", len(result))
	return result, nil
}

func ocrPage(doc *fitz.Document, n int) (string, error) {
	img, err := doc.Image(n)
	if err != nil {
		return "", fmt.Errorf("failed to extract image: %w", err)
	}

	tmpFile, err := os.CreateTemp("", "page-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	if err := savePNG(tmpPath, img); err != nil {
		return "", err
	}

	out, err := exec.Command("tesseract", tmpPath, "stdout", "-l", "eng").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tesseract error: %w, output: %s", err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

func checkTesseract() error {
	out, err := exec.Command("tesseract", "-v").CombinedOutput()
	if err != nil {
		return fmt.Errorf("tesseract not found or not executable: %w\nOutput: %s", err, string(out))
	}
	zap.S().Debugf("Tesseract version: %s", strings.Split(string(out), "\n")[0])
	return nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
