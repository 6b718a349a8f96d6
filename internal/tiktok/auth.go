package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

var ErrAuthTimeout = errors.New("authentication timed out")

const callbackPage = `<html><body><h1>Authentication successful</h1><p>You can close this window and return to the terminal.</p></body></html>`

// Authenticator runs TikTok's authorization code flow with PKCE: it serves a
// local callback route, opens the authorize URL in a browser, waits for the
// redirect to deliver a code, and exchanges it for an access token.
type Authenticator struct {
	clientKey    string
	clientSecret string
	authURL      string
	tokenURL     string
	scopes       []string
	redirectPort int
	tokenPath    string
	timeout      time.Duration
	httpClient   *http.Client
	openBrowser  func(url string) error
	token        *oauth2.Token
}

type AuthOptions struct {
	ClientKey    string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	RedirectPort int
	TokenPath    string
	Timeout      time.Duration
}

func NewAuthenticator(opts AuthOptions) *Authenticator {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	return &Authenticator{
		clientKey:    opts.ClientKey,
		clientSecret: opts.ClientSecret,
		authURL:      opts.AuthURL,
		tokenURL:     opts.TokenURL,
		scopes:       opts.Scopes,
		redirectPort: opts.RedirectPort,
		tokenPath:    opts.TokenPath,
		timeout:      timeout,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		openBrowser:  browser.OpenURL,
	}
}

// Token returns a cached or saved token when still valid, and runs the full
// browser flow otherwise.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	if a.token == nil {
		_ = a.LoadToken()
	}
	if a.token != nil && a.token.Valid() {
		return a.token, nil
	}
	return a.Authenticate(ctx)
}

func (a *Authenticator) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	session, err := NewAuthSession()
	if err != nil {
		return nil, err
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", a.redirectPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	redirectURI := fmt.Sprintf("http://localhost:%d/callback", listener.Addr().(*net.TCPAddr).Port)

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           callbackHandler(session.State, codeChan, errChan),
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authorizeURL := a.buildAuthorizeURL(session, redirectURI)
	slog.Info("Opening browser for TikTok authentication...")
	slog.Debug("Authorize URL", "url", authorizeURL)

	if err := a.openBrowser(authorizeURL); err != nil {
		slog.Warn("Failed to open browser, visit the URL manually", "url", authorizeURL)
	}

	select {
	case code := <-codeChan:
		token, err := a.exchange(ctx, code, session.Verifier, redirectURI)
		if err != nil {
			return nil, err
		}
		a.token = token
		if a.tokenPath != "" {
			if err := a.SaveToken(); err != nil {
				slog.Warn("Failed to save token", "error", err)
			}
		}
		return token, nil

	case err := <-errChan:
		return nil, err

	case <-ctx.Done():
		return nil, ctx.Err()

	case <-time.After(a.timeout):
		return nil, ErrAuthTimeout
	}
}

// callbackHandler captures exactly one authorization code. The state
// parameter must match the one generated for this attempt.
func callbackHandler(wantState string, codeChan chan<- string, errChan chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}

		query := r.URL.Query()
		if state := query.Get("state"); state != wantState {
			sendErr(errChan, fmt.Errorf("state mismatch in callback"))
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		code := query.Get("code")
		if code == "" {
			sendErr(errChan, fmt.Errorf("no code in callback"))
			http.Error(w, "no authorization code received", http.StatusBadRequest)
			return
		}

		select {
		case codeChan <- code:
		default:
		}
		_, _ = fmt.Fprint(w, callbackPage)
	})
}

func sendErr(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
	}
}

func (a *Authenticator) buildAuthorizeURL(session *AuthSession, redirectURI string) string {
	u, err := url.Parse(a.authURL)
	if err != nil {
		return a.authURL
	}

	q := u.Query()
	q.Set("client_key", a.clientKey)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(a.scopes, ","))
	q.Set("state", session.State)
	q.Set("code_challenge", session.Challenge)
	q.Set("code_challenge_method", "S256")
	u.RawQuery = q.Encode()

	return u.String()
}

func (a *Authenticator) exchange(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, error) {
	form := url.Values{
		"client_key":    {a.clientKey},
		"client_secret": {a.clientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"authorization_code"},
		"code_verifier": {verifier},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed: %s", string(body))
	}

	var tokenResp struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		ExpiresIn        int64  `json:"expires_in"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		if tokenResp.Error != "" {
			return nil, fmt.Errorf("token exchange failed: %s: %s", tokenResp.Error, tokenResp.ErrorDescription)
		}
		return nil, fmt.Errorf("no access token in response")
	}

	token := &oauth2.Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: tokenResp.RefreshToken,
	}
	if tokenResp.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return token, nil
}

func (a *Authenticator) LoadToken() error {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	a.token = &token
	return nil
}

func (a *Authenticator) SaveToken() error {
	data, err := json.MarshalIndent(a.token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(a.tokenPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

func (a *Authenticator) IsAuthenticated() bool {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return false
		}
	}
	return a.token != nil && a.token.Valid()
}
