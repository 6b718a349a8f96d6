package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAPIClient(server *httptest.Server) *Client {
	return NewClient(ClientOptions{
		AccessToken:  "test-token",
		InitURL:      server.URL + "/init",
		StatusURL:    server.URL + "/status",
		PrivacyLevel: "PUBLIC_TO_EVERYONE",
		HTTPClient:   server.Client(),
	})
}

func TestInitUploadSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		var payload struct {
			PostInfo struct {
				Title        string `json:"title"`
				PrivacyLevel string `json:"privacy_level"`
			} `json:"post_info"`
			SourceInfo struct {
				Source          string `json:"source"`
				VideoSize       int64  `json:"video_size"`
				ChunkSize       int64  `json:"chunk_size"`
				TotalChunkCount int    `json:"total_chunk_count"`
			} `json:"source_info"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode init payload: %v", err)
		}
		if payload.PostInfo.Title != "my caption" {
			t.Errorf("title = %q, want my caption", payload.PostInfo.Title)
		}
		if payload.SourceInfo.ChunkSize != payload.SourceInfo.VideoSize {
			t.Errorf("chunk_size %d != video_size %d, single-chunk upload expected",
				payload.SourceInfo.ChunkSize, payload.SourceInfo.VideoSize)
		}
		if payload.SourceInfo.TotalChunkCount != 1 {
			t.Errorf("total_chunk_count = %d, want 1", payload.SourceInfo.TotalChunkCount)
		}

		_, _ = fmt.Fprint(w, `{"data":{"publish_id":"pub-123","upload_url":"upload.example.com/path"}}`)
	}))
	defer server.Close()

	result, err := newTestAPIClient(server).InitUpload(context.Background(), "my caption", 2048)
	if err != nil {
		t.Fatalf("InitUpload() error: %v", err)
	}

	if result.RateLimited {
		t.Error("RateLimited = true, want false")
	}
	if result.PublishID != "pub-123" {
		t.Errorf("PublishID = %q, want pub-123", result.PublishID)
	}
	if result.UploadURL != "https://upload.example.com/path" {
		t.Errorf("UploadURL = %q, want scheme-normalized URL", result.UploadURL)
	}
}

func TestInitUploadRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"data":{},"error":{"code":"spam_risk_too_many_pending_share","message":"too many pending shares"}}`)
	}))
	defer server.Close()

	result, err := newTestAPIClient(server).InitUpload(context.Background(), "caption", 100)
	if err != nil {
		t.Fatalf("InitUpload() error: %v", err)
	}
	if !result.RateLimited {
		t.Error("RateLimited = false, want true")
	}
}

func TestInitUploadMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missingUploadURL", `{"data":{"publish_id":"pub-123"}}`},
		{"missingPublishID", `{"data":{"upload_url":"https://u"}}`},
		{"emptyData", `{"data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestAPIClient(server).InitUpload(context.Background(), "caption", 100)
			if err == nil {
				t.Error("InitUpload() should fail on malformed response")
			}
		})
	}
}

func TestInitUploadHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestAPIClient(server).InitUpload(context.Background(), "caption", 100)
	if err == nil {
		t.Error("InitUpload() should fail on HTTP error")
	}
}

func TestTransferHeaders(t *testing.T) {
	data := []byte("fake video bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "video/mp4" {
			t.Errorf("Content-Type = %q, want video/mp4", got)
		}
		wantRange := fmt.Sprintf("bytes 0-%d/%d", len(data)-1, len(data))
		if got := r.Header.Get("Content-Range"); got != wantRange {
			t.Errorf("Content-Range = %q, want %q", got, wantRange)
		}
		if r.ContentLength != int64(len(data)) {
			t.Errorf("Content-Length = %d, want %d", r.ContentLength, len(data))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != string(data) {
			t.Error("body does not match uploaded bytes")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestAPIClient(server)
	if err := client.Transfer(context.Background(), server.URL, data); err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}
}

func TestTransferFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := newTestAPIClient(server).Transfer(context.Background(), server.URL, []byte("x"))
	if err == nil {
		t.Error("Transfer() should fail on non-2xx status")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantStatus string
		wantGone   bool
		wantErr    bool
	}{
		{
			name:       "processing",
			statusCode: http.StatusOK,
			body:       `{"data":{"status":"PROCESSING_UPLOAD"}}`,
			wantStatus: "PROCESSING_UPLOAD",
		},
		{
			name:       "published",
			statusCode: http.StatusOK,
			body:       `{"data":{"status":"PUBLISH_COMPLETE"}}`,
			wantStatus: "PUBLISH_COMPLETE",
		},
		{
			name:       "goneMeansDone",
			statusCode: http.StatusNotFound,
			wantGone:   true,
		},
		{
			name:       "serverError",
			statusCode: http.StatusInternalServerError,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("publish_id"); got != "pub-123" {
					t.Errorf("publish_id = %q, want pub-123", got)
				}
				w.WriteHeader(tt.statusCode)
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			// Plain client: the retrying client would mask the 5xx case.
			client := NewClient(ClientOptions{
				AccessToken: "test-token",
				StatusURL:   server.URL + "/status",
				HTTPClient:  server.Client(),
			})

			result, err := client.Status(context.Background(), "pub-123")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Status() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if result.Gone != tt.wantGone {
				t.Errorf("Gone = %v, want %v", result.Gone, tt.wantGone)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", result.Status, tt.wantStatus)
			}
		})
	}
}

func TestNormalizeUploadURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://upload.example.com/x", "https://upload.example.com/x"},
		{"http://upload.example.com/x", "http://upload.example.com/x"},
		{"upload.example.com/x", "https://upload.example.com/x"},
	}

	for _, tt := range tests {
		if got := normalizeUploadURL(tt.in); got != tt.want {
			t.Errorf("normalizeUploadURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
