// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/wayfare-labs/tripchat/lib/netutil"
)

// ProgressFunc reports upload progress. written is the number of
// bytes consumed from the source so far; total is the declared size,
// or -1 when unknown.
type ProgressFunc func(written, total int64)

// UploadAttachment uploads one attachment as multipart form data and
// returns the URL the backend stored it under. The composer sends the
// URL as an image/file message after the upload succeeds.
//
// progress may be nil. It is called synchronously from the upload
// goroutine as the body is consumed, so it must be cheap.
func (c *Client) UploadAttachment(ctx context.Context, filename, contentType string, source io.Reader, size int64, progress ProgressFunc) (*UploadResponse, error) {
	if filename == "" {
		return nil, fmt.Errorf("api: attachment filename is required")
	}

	// Stream the multipart body through a pipe; attachments can be
	// large and must not be buffered whole in memory.
	pipeReader, pipeWriter := io.Pipe()
	form := multipart.NewWriter(pipeWriter)

	go func() {
		part, err := form.CreateFormFile("file", filename)
		if err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		counted := &countingReader{source: source, total: size, progress: progress}
		if _, err := io.Copy(part, counted); err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		pipeWriter.CloseWithError(form.Close())
	}()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat/attachments", pipeReader)
	if err != nil {
		return nil, fmt.Errorf("api: creating upload request: %w", err)
	}
	request.Header.Set("Content-Type", form.FormDataContentType())
	if contentType != "" {
		request.Header.Set("X-Attachment-Content-Type", contentType)
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("api: upload failed: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("api: reading upload response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		var apiErr APIError
		if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil || apiErr.Code == "" {
			return nil, fmt.Errorf("api: unexpected %d upload response: %s",
				response.StatusCode, string(responseBody))
		}
		apiErr.StatusCode = response.StatusCode
		return nil, &apiErr
	}

	var upload UploadResponse
	if err := json.Unmarshal(responseBody, &upload); err != nil {
		return nil, fmt.Errorf("api: parsing upload response: %w", err)
	}
	c.logger.Info("attachment uploaded", "filename", filename, "url", upload.URL)
	return &upload, nil
}

// countingReader wraps the upload source, invoking the progress
// callback as bytes are consumed.
type countingReader struct {
	source   io.Reader
	written  int64
	total    int64
	progress ProgressFunc
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.source.Read(p)
	if n > 0 {
		r.written += int64(n)
		if r.progress != nil {
			r.progress(r.written, r.total)
		}
	}
	return n, err
}
