// Package auth runs the installed-app OAuth flow for the Google Calendar
// export and caches the resulting token next to the config file.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	// ClientSecretsFile is the credentials.json downloaded from the Cloud console.
	ClientSecretsFile = "credentials.json"
	TokenFile         = "token.json"

	// LocalhostAuthPort receives the OAuth redirect.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// Scopes needed to manage events and find the target calendar by name.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

type Authenticator struct {
	// Dir holds credentials.json and token.json.
	Dir    string
	Logger *log.Logger
	// Out receives the authorization URL the user has to open.
	Out io.Writer
}

func NewAuthenticator(dir string, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = log.Default()
	}
	return &Authenticator{Dir: dir, Logger: logger, Out: os.Stdout}
}

func (a *Authenticator) tokenPath() string {
	return filepath.Join(a.Dir, TokenFile)
}

// Config reads the client secrets and pins the redirect to the local listener.
func (a *Authenticator) Config(scopes []string) (*oauth2.Config, error) {
	secrets := filepath.Join(a.Dir, ClientSecretsFile)
	b, err := os.ReadFile(secrets)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", secrets, err)
	}

	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	redirect, changed := localRedirect(cfg.RedirectURL)
	if changed {
		a.Logger.Debugf("using redirect %s instead of %s", redirect, cfg.RedirectURL)
	}
	cfg.RedirectURL = redirect
	return cfg, nil
}

// localRedirect forces the redirect URL onto LocalhostAuthPort. The
// out-of-band URI and non-local hosts become the local callback.
func localRedirect(raw string) (string, bool) {
	fallback := fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	u, err := url.Parse(raw)
	if err != nil || raw == "urn:ietf:wg:oauth:2.0:oob" || raw == "" {
		return fallback, true
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" {
		return fallback, true
	}
	if u.Port() == LocalhostAuthPort {
		return raw, false
	}
	u.Host = net.JoinHostPort(host, LocalhostAuthPort)
	return u.String(), true
}

// Client returns an HTTP client that refreshes its token on demand. Without
// a cached token the browser flow is started.
func (a *Authenticator) Client(ctx context.Context, scopes []string) (*http.Client, error) {
	cfg, err := a.Config(scopes)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(a.tokenPath())
	if err != nil {
		a.Logger.Infof("no token at %s, starting browser authorization", a.tokenPath())
		if tok, err = a.webToken(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(a.tokenPath(), tok); err != nil {
			return nil, err
		}
	}

	src := cfg.TokenSource(ctx, tok)
	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.AccessToken != tok.AccessToken || fresh.RefreshToken != tok.RefreshToken {
		if err := saveToken(a.tokenPath(), fresh); err != nil {
			a.Logger.Warnf("could not store refreshed token: %v", err)
		}
	}
	return oauth2.NewClient(ctx, src), nil
}

func (a *Authenticator) webToken(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			}
			code := q.Get("code")
			if code == "" {
				http.Error(w, "authorization code not found", http.StatusBadRequest)
				errCh <- errors.New("authorization code not found in redirect")
				return
			}
			fmt.Fprintln(w, "tripcal is authorized. You can close this window.")
			codeCh <- code
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server: %w", err)
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Fprintf(a.Out, "Open this URL in your browser to authorize tripcal:\n%s\n", authURL)

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := cfg.Exchange(exCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out, please try again")
	}
}

// Reset removes the cached token so the next Client call re-authorizes.
func (a *Authenticator) Reset() error {
	err := os.Remove(a.tokenPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not delete token file %s: %w", a.tokenPath(), err)
	}
	return nil
}

// CalendarService returns an authenticated Calendar API service.
func (a *Authenticator) CalendarService(ctx context.Context) (*calendar.Service, error) {
	client, err := a.Client(ctx, Scopes)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client for Calendar API: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return srv, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
