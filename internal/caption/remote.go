package caption

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// remoteStrategy calls a hosted captioning model over HTTP. The image is sent
// either as a raw binary body or, for the legacy encoding, as base64 inside a
// JSON envelope. Any transport error, non-2xx status or unparseable body is a
// strategy failure; the chain itself is the retry policy.
type remoteStrategy struct {
	name       string
	url        string
	token      string
	client     *http.Client
	base64Body bool
}

func (s *remoteStrategy) Name() string { return s.name }

func (s *remoteStrategy) Caption(ctx context.Context, path string) (string, error) {
	const op = "caption.remote"

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: read source: %v", op, err)
	}

	var body io.Reader
	contentType := "application/octet-stream"
	if s.base64Body {
		payload, err := json.Marshal(map[string]string{
			"inputs": base64.StdEncoding.EncodeToString(data),
		})
		if err != nil {
			return "", fmt.Errorf("%s: encode payload: %v", op, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	} else {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return "", fmt.Errorf("%s: build request: %v", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%s: non-2xx status: %d", op, resp.StatusCode)
	}

	return parseGeneratedText(raw)
}

// parseGeneratedText extracts the caption from an inference response shaped
// as [{"generated_text": "..."}].
func parseGeneratedText(raw []byte) (string, error) {
	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("unparseable response body: %v", err)
	}
	if len(out) == 0 || strings.TrimSpace(out[0].GeneratedText) == "" {
		return "", fmt.Errorf("response contains no generated text")
	}
	return out[0].GeneratedText, nil
}
