package tiktok

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		query    string
		wantCode string
		wantErr  string
	}{
		{
			name:     "validCallback",
			path:     "/callback",
			query:    "code=auth-code&state=good-state",
			wantCode: "auth-code",
		},
		{
			name:    "stateMismatch",
			path:    "/callback",
			query:   "code=auth-code&state=evil-state",
			wantErr: "state mismatch",
		},
		{
			name:    "missingCode",
			path:    "/callback",
			query:   "state=good-state",
			wantErr: "no code",
		},
		{
			name:  "wrongPath",
			path:  "/favicon.ico",
			query: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeChan := make(chan string, 1)
			errChan := make(chan error, 1)

			handler := callbackHandler("good-state", codeChan, errChan)
			req := httptest.NewRequest(http.MethodGet, tt.path+"?"+tt.query, nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantCode != "" {
				select {
				case code := <-codeChan:
					if code != tt.wantCode {
						t.Errorf("code = %q, want %q", code, tt.wantCode)
					}
				default:
					t.Fatal("no code captured")
				}
				return
			}

			if tt.wantErr != "" {
				select {
				case err := <-errChan:
					if !strings.Contains(err.Error(), tt.wantErr) {
						t.Errorf("error = %v, want containing %q", err, tt.wantErr)
					}
				default:
					t.Fatal("no error reported")
				}
				return
			}

			select {
			case code := <-codeChan:
				t.Errorf("unexpected code %q", code)
			case err := <-errChan:
				t.Errorf("unexpected error %v", err)
			default:
			}
		})
	}
}

func TestAuthenticateFullFlow(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("client_key"); got != "test-key" {
			t.Errorf("client_key = %q, want test-key", got)
		}
		if got := r.Form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want authorization_code", got)
		}
		if got := r.Form.Get("code"); got != "browser-code" {
			t.Errorf("code = %q, want browser-code", got)
		}
		if got := r.Form.Get("code_verifier"); len(got) != verifierLength {
			t.Errorf("code_verifier length = %d, want %d", len(got), verifierLength)
		}
		_, _ = fmt.Fprint(w, `{"access_token":"granted-token","refresh_token":"refresh","expires_in":86400}`)
	}))
	defer tokenServer.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	auth := NewAuthenticator(AuthOptions{
		ClientKey:    "test-key",
		ClientSecret: "test-secret",
		AuthURL:      "https://www.tiktok.com/v2/auth/authorize/",
		TokenURL:     tokenServer.URL,
		Scopes:       []string{"user.info.basic", "video.upload"},
		RedirectPort: 0, // random free port
		TokenPath:    tokenPath,
		Timeout:      5 * time.Second,
	})

	// Stand-in browser: follow the redirect back with the right state.
	auth.openBrowser = func(authorizeURL string) error {
		u, err := url.Parse(authorizeURL)
		if err != nil {
			return err
		}
		q := u.Query()
		if q.Get("code_challenge_method") != "S256" {
			t.Errorf("code_challenge_method = %q, want S256", q.Get("code_challenge_method"))
		}
		if q.Get("response_type") != "code" {
			t.Errorf("response_type = %q, want code", q.Get("response_type"))
		}
		redirect := q.Get("redirect_uri")
		go func() {
			resp, err := http.Get(redirect + "?code=browser-code&state=" + q.Get("state"))
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	token, err := auth.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if token.AccessToken != "granted-token" {
		t.Errorf("AccessToken = %q, want granted-token", token.AccessToken)
	}
	if !token.Valid() {
		t.Error("token should be valid")
	}

	// Token persisted for the next run.
	reloaded := NewAuthenticator(AuthOptions{TokenPath: tokenPath})
	if !reloaded.IsAuthenticated() {
		t.Error("saved token should authenticate a fresh Authenticator")
	}
}

func TestAuthenticateTimeout(t *testing.T) {
	auth := NewAuthenticator(AuthOptions{
		ClientKey:    "test-key",
		ClientSecret: "test-secret",
		AuthURL:      "https://www.tiktok.com/v2/auth/authorize/",
		TokenURL:     "http://localhost:1/token",
		RedirectPort: 0,
		Timeout:      50 * time.Millisecond,
	})
	auth.openBrowser = func(string) error { return nil }

	_, err := auth.Authenticate(context.Background())
	if !errors.Is(err, ErrAuthTimeout) {
		t.Errorf("error = %v, want ErrAuthTimeout", err)
	}
}

func TestAuthenticateStateMismatchFails(t *testing.T) {
	auth := NewAuthenticator(AuthOptions{
		ClientKey:    "test-key",
		ClientSecret: "test-secret",
		AuthURL:      "https://www.tiktok.com/v2/auth/authorize/",
		TokenURL:     "http://localhost:1/token",
		RedirectPort: 0,
		Timeout:      5 * time.Second,
	})
	auth.openBrowser = func(authorizeURL string) error {
		u, err := url.Parse(authorizeURL)
		if err != nil {
			return err
		}
		redirect := u.Query().Get("redirect_uri")
		go func() {
			resp, err := http.Get(redirect + "?code=stolen-code&state=forged")
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	_, err := auth.Authenticate(context.Background())
	if err == nil || !strings.Contains(err.Error(), "state mismatch") {
		t.Errorf("error = %v, want state mismatch", err)
	}
}

func TestExchangeErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"httpError", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"code expired"}`},
		{"noAccessToken", http.StatusOK, `{"error":"invalid_request","error_description":"bad verifier"}`},
		{"emptyBody", http.StatusOK, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			auth := NewAuthenticator(AuthOptions{
				ClientKey:    "k",
				ClientSecret: "s",
				TokenURL:     server.URL,
			})

			_, err := auth.exchange(context.Background(), "code", "verifier", "http://localhost:8000/callback")
			if err == nil {
				t.Error("exchange() should fail")
			}
		})
	}
}

func TestTokenUsesCachedToken(t *testing.T) {
	auth := NewAuthenticator(AuthOptions{TokenPath: filepath.Join(t.TempDir(), "token.json")})
	auth.token = &oauth2.Token{
		AccessToken: "cached",
		Expiry:      time.Now().Add(time.Hour),
	}

	token, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if token.AccessToken != "cached" {
		t.Errorf("AccessToken = %q, want cached", token.AccessToken)
	}
}

func TestLoadTokenMissingFile(t *testing.T) {
	auth := NewAuthenticator(AuthOptions{TokenPath: filepath.Join(t.TempDir(), "absent.json")})
	if err := auth.LoadToken(); err == nil {
		t.Error("LoadToken() should fail for missing file")
	}
	if auth.IsAuthenticated() {
		t.Error("IsAuthenticated() should be false without a token")
	}
}
