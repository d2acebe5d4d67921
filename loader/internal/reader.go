package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsupported marks files the loader does not know how to read.
var ErrUnsupported = errors.New("unsupported document type")

// ErrNoConverter marks PDFs encountered without a conversion service
// configured.
var ErrNoConverter = errors.New("no PDF conversion service configured")

// ReadDocument returns the text content of one knowledge base file.
// Markdown and plain text are read directly; PDFs are cropped and sent
// through the docling conversion service.
func ReadDocument(ctx context.Context, path, doclingURL string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".pdf":
		if doclingURL == "" {
			return "", ErrNoConverter
		}
		return convertPDF(ctx, path, doclingURL)
	default:
		return "", ErrUnsupported
	}
}

// convertPDF crops headers and footers, then converts the result to
// markdown through a docling-compatible endpoint.
func convertPDF(ctx context.Context, path, doclingURL string) (string, error) {
	cropped, err := os.CreateTemp("", "kb-*.pdf")
	if err != nil {
		return "", err
	}
	cropped.Close()
	defer os.Remove(cropped.Name())

	if err := RemoveHeaderFooterCrop(path, cropped.Name(), cropTopPt, cropBottomPt); err != nil {
		return "", err
	}
	return convertPDFToMD(ctx, cropped.Name(), doclingURL)
}

type doclingResponse struct {
	Document struct {
		MdContent string `json:"md_content"`
	} `json:"document"`
}

func convertPDFToMD(ctx context.Context, filePath, doclingURL string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("files", filePath)
	if err != nil {
		return "", err
	}
	if _, err = io.Copy(part, file); err != nil {
		return "", err
	}
	writer.Close()

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, "POST", doclingURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("docling error: status %d, body: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var d doclingResponse
	if err := json.Unmarshal(body, &d); err != nil {
		return "", err
	}
	return d.Document.MdContent, nil
}
