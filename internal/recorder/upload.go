package recorder

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"
)

// HTTPUploader posts assembled artifacts to the backend upload endpoint as
// multipart form data, the way the browser client does. One attempt, no
// retry; the adapter drops the artifact on failure.
type HTTPUploader struct {
	uploadURL  string
	httpClient *http.Client
}

func NewHTTPUploader(uploadURL string) *HTTPUploader {
	return &HTTPUploader{
		uploadURL:  uploadURL,
		httpClient: &http.Client{},
	}
}

var _ Uploader = (*HTTPUploader)(nil)

func (u *HTTPUploader) Upload(ctx context.Context, artifact *Artifact) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("recording", artifact.MeetingID+".webm")
	if err != nil {
		return &CaptureError{Op: "upload", Err: err}
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return &CaptureError{Op: "upload", Err: err}
	}
	if err := writer.WriteField("meeting_id", artifact.MeetingID); err != nil {
		return &CaptureError{Op: "upload", Err: err}
	}
	if err := writer.Close(); err != nil {
		return &CaptureError{Op: "upload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, body)
	if err != nil {
		return &CaptureError{Op: "upload", Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return &CaptureError{Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &CaptureError{
			Op:  "upload",
			Err: errors.Errorf("status %d: %s", resp.StatusCode, b),
		}
	}
	return nil
}
