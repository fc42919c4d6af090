package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// ErrNoToken means the account was never authorised on this machine. Run
// the server once with -gmail-login.
var ErrNoToken = errors.New("no cached Gmail token")

// GmailClient returns an HTTP client authorised for read-only Gmail access
// using the OAuth client in credentialsFile and the token cached in
// tokenFile.
func GmailClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	config, err := loadConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token %s: %w", tokenFile, err)
	}
	return config.Client(ctx, tok), nil
}

// Login runs the interactive consent flow: it prints the consent URL to out,
// reads the authorisation code from in and caches the token in tokenFile.
func Login(ctx context.Context, credentialsFile, tokenFile string, in io.Reader, out io.Writer) error {
	config, err := loadConfig(credentialsFile)
	if err != nil {
		return err
	}

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open this link to authorize read-only Gmail access:\n%v\n\nPaste the code here: ", authURL)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(tokenFile, tok)
}

func loadConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	return config, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
