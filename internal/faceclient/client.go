package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Match is one gallery hit from a 1:N search. Identity is the reference
// label the match came from (studentID_name by convention); Distance is the
// embedding distance, lower is closer.
type Match struct {
	Identity string  `json:"identity"`
	Distance float64 `json:"distance"`
}

// SearchResult contains ranked matches for a query frame. An empty Matches
// slice means nothing cleared the matcher's internal threshold.
type SearchResult struct {
	Matches       []Match `json:"matches"`
	FacesDetected int     `json:"faces_detected"`
}

// EnrollResult contains the face service's response to an enrollment.
type EnrollResult struct {
	Label   string `json:"label"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. Skip short-circuits every call with canned results
// for development without the face service running.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// Search runs a 1:N identification of the captured frame against the
// enrolled gallery.
func (c *Client) Search(ctx context.Context, photo []byte, filename string) (*SearchResult, error) {
	if c.Skip {
		return &SearchResult{
			Matches:       []Match{{Identity: "S000_Mock Student", Distance: 0.12}},
			FacesDetected: 1,
		}, nil
	}
	if len(photo) == 0 {
		return nil, fmt.Errorf("photo required")
	}

	resp, err := c.postImage(ctx, "/search", photo, filename, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// Enroll adds a reference image under the given identity label.
func (c *Client) Enroll(ctx context.Context, label string, photo []byte, filename string) (*EnrollResult, error) {
	if c.Skip {
		return &EnrollResult{Label: label, Success: true, Message: "enrolled (mock)"}, nil
	}
	if label == "" {
		return nil, fmt.Errorf("label required")
	}

	resp, err := c.postImage(ctx, "/enroll", photo, filename, map[string]string{"label": label})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out EnrollResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) postImage(ctx context.Context, path string, photo []byte, filename string, fields map[string]string) (*http.Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	fw, err := w.CreateFormFile("photo", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, bytes.NewReader(photo)); err != nil {
		return nil, err
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("face service error %s: %s", resp.Status, string(body))
}
