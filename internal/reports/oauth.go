package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"

	"spendrag/internal/core"
)

const defaultAuthTimeout = 5 * time.Minute

// OAuthClientConfig builds the installed-app OAuth config from inline JSON
// or a client secrets file. The scope is read-only.
func OAuthClientConfig(clientJSON, clientFile string) (*oauth2.Config, error) {
	var b []byte
	switch {
	case strings.TrimSpace(clientJSON) != "":
		b = []byte(clientJSON)
	case strings.TrimSpace(clientFile) != "":
		var err error
		b, err = os.ReadFile(clientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
	default:
		return nil, fmt.Errorf("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE: %w", core.ErrCapabilityUnavailable)
	}
	cfg, err := google.ConfigFromJSON(b, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

func userTokenSource(ctx context.Context, cfg SheetsConfig) (oauth2.TokenSource, error) {
	oc, err := OAuthClientConfig(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.OAuthTokenFile)
	if err != nil {
		return nil, err
	}
	return oc.TokenSource(ctx, tok), nil
}

// LoadToken reads a token written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

// AuthorizeOptions tune the local redirect flow.
type AuthorizeOptions struct {
	RedirectPort string
	TokenFile    string
	Timeout      time.Duration
	Out          io.Writer
}

// Authorize runs the installed-app consent flow: it prints the consent URL,
// waits for the redirect on localhost and saves the exchanged token.
func Authorize(ctx context.Context, cfg *oauth2.Config, opts AuthorizeOptions) error {
	if opts.RedirectPort == "" {
		opts.RedirectPort = "8085"
	}
	if opts.TokenFile == "" {
		opts.TokenFile = "token.json"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultAuthTimeout
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	cfg.RedirectURL = "http://localhost:" + opts.RedirectPort + "/callback"

	ln, err := net.Listen("tcp", "localhost:"+opts.RedirectPort)
	if err != nil {
		return fmt.Errorf("listen for redirect: %w", err)
	}
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(codeCh, errCh))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Fprintf(opts.Out, "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("token exchange: %w", err)
		}
		if err := SaveToken(opts.TokenFile, tok); err != nil {
			return err
		}
		fmt.Fprintf(opts.Out, "Saved token to %s\n", opts.TokenFile)
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("authorization timed out")
		}
		return ctx.Err()
	}
}

// callbackHandler forwards the first authorization code or error.
func callbackHandler(codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			select {
			case errCh <- fmt.Errorf("oauth error: %s", errStr):
			default:
			}
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- code:
		default:
		}
	})
}
