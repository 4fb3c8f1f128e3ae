package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// SaveRequest asks the service to store a frame.
type SaveRequest struct {
	Image         string         `json:"image"`
	RunDetection  bool           `json:"run_detection"`
	SaveToGallery bool           `json:"save_to_gallery"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SaveResult is the reply to a save. Original is the stored file name.
type SaveResult struct {
	Original string `json:"original,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Gallery wraps the upload and save endpoints of the service.
type Gallery struct {
	uploadURL string
	saveURL   string
	http      *http.Client
}

// NewGallery creates a Gallery for the given absolute endpoint URLs.
func NewGallery(uploadURL, saveURL string, timeout time.Duration) *Gallery {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gallery{
		uploadURL: uploadURL,
		saveURL:   saveURL,
		http:      &http.Client{Timeout: timeout},
	}
}

// UploadAndAnalyze uploads the file at path as multipart field "image" and
// returns the risk analysis for it.
func (g *Gallery) UploadAndAnalyze(ctx context.Context, path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fail(fmt.Errorf("%w: read %s: %v", ErrTransport, path, err))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return Fail(fmt.Errorf("%w: %v", ErrTransport, err))
	}
	if _, err := part.Write(data); err != nil {
		return Fail(fmt.Errorf("%w: %v", ErrTransport, err))
	}
	if err := mw.Close(); err != nil {
		return Fail(fmt.Errorf("%w: %v", ErrTransport, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.uploadURL, &body)
	if err != nil {
		return Fail(fmt.Errorf("%w: %v", ErrTransport, err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return doJSON(g.http, req)
}

// CaptureAndSave stores a frame on the service side.
func (g *Gallery) CaptureAndSave(ctx context.Context, sr SaveRequest) SaveResult {
	body, err := json.Marshal(sr)
	if err != nil {
		return SaveResult{Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.saveURL, bytes.NewReader(body))
	if err != nil {
		return SaveResult{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return SaveResult{Error: fmt.Errorf("%w: %v", ErrTransport, err).Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return SaveResult{Error: fmt.Errorf("%w: read response: %v", ErrTransport, err).Error()}
	}

	var wire struct {
		Original string `json:"original"`
		Error    any    `json:"error"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return SaveResult{Error: fmt.Errorf("%w: invalid response: %v", ErrRemote, err).Error()}
	}
	if msg := errorText(wire.Error); msg != "" {
		return SaveResult{Error: msg}
	}
	if resp.StatusCode/100 != 2 {
		return SaveResult{Error: fmt.Errorf("%w: %s", ErrRemote, resp.Status).Error()}
	}
	return SaveResult{Original: wire.Original}
}
