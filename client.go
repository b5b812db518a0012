package bg

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	passportUrl = "https://passport.bilibili.com"
	wwwUrl      = "https://www.bilibili.com"
	mallUrl     = "https://mall.bilibili.com"

	defaultUseragent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 bg-cmd/1.2"

	dialTimeout    = 3 * time.Second
	requestTimeout = 30 * time.Second

	qrPollInterval = time.Second
	qrPollAttempts = 60
)

type Client struct {
	client    *http.Client
	store     *CredentialStore
	log       *zap.Logger
	useragent string
	out       io.Writer

	confirm      func(prompt string) bool
	pollInterval time.Duration
	pollAttempts int

	// Fixed remote hosts; fields only so tests can point at a local server.
	passportBase string
	wwwBase      string
	mallBase     string
}

func NewClient(client *http.Client, useragent string, logger *zap.Logger, store *CredentialStore) (*Client, error) {
	if store == nil {
		return nil, StoreNilError
	}
	if client == nil {
		client = &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
			},
		}
	}
	if useragent == "" {
		useragent = defaultUseragent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		client:       client,
		store:        store,
		log:          logger,
		useragent:    useragent,
		out:          os.Stdout,
		pollInterval: qrPollInterval,
		pollAttempts: qrPollAttempts,
		passportBase: passportUrl,
		wwwBase:      wwwUrl,
		mallBase:     mallUrl,
	}
	c.confirm = func(prompt string) bool {
		return promptYesNo(c.out, os.Stdin, prompt)
	}

	return c, nil
}

func (c *Client) Store() *CredentialStore {
	return c.store
}

func (c *Client) loadCredential() (*Credential, error) {
	cred, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, NotLoggedInError
	}
	return cred, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader, cred *Credential) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.useragent)
	if cred != nil {
		req.Header.Set("Cookie", cred.CookieHeader())
	}

	return req, nil
}
