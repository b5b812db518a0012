package bg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	cookieInfoPath     = "/x/passport-login/web/cookie/info"
	cookieRefreshPath  = "/x/passport-login/web/cookie/refresh"
	confirmRefreshPath = "/x/passport-login/web/confirm/refresh"
	correspondPagePath = "/correspond/1/"

	refreshSource       = "main_web"
	refreshCsrfSelector = "#1-name"
)

type cookieInfoResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Refresh   bool  `json:"refresh"`
		Timestamp int64 `json:"timestamp"`
	} `json:"data"`
}

type cookieRefreshResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status       int64  `json:"status"`
		Message      string `json:"message"`
		RefreshToken string `json:"refresh_token"`
	} `json:"data"`
}

// NeedsRefresh probes the cookie-info endpoint. Anything short of an explicit
// zero-status "refresh: false" answer counts as needing a refresh, so a stale
// session is never silently kept.
func (c *Client) NeedsRefresh(ctx context.Context, cred *Credential) bool {
	req, err := c.newRequest(ctx, http.MethodGet, c.passportBase+cookieInfoPath+"?"+url.Values{
		"csrf": {cred.CsrfToken},
	}.Encode(), nil, cred)
	if err != nil {
		return true
	}

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		return true
	}

	var response cookieInfoResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return true
	}

	if response.Code != 0 {
		return true
	}

	return response.Data.Refresh
}

func (c *Client) fetchRefreshCsrf(ctx context.Context, correspondPath string, cred *Credential) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.wwwBase+correspondPagePath+correspondPath, nil, cred)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	refreshCsrf := strings.TrimSpace(doc.Find(refreshCsrfSelector).Text())
	if refreshCsrf == "" {
		return "", RefreshCsrfMissingError
	}

	return refreshCsrf, nil
}

// exchangeRefresh trades the current credential set for a fresh one. The new
// refresh token arrives in the JSON body; the three cookie fields arrive as
// Set-Cookie headers, each falling back to its prior value when the server
// chooses not to rotate it. The store is only written after a zero-status
// response, so a failed exchange leaves the prior set intact.
func (c *Client) exchangeRefresh(ctx context.Context, refreshCsrf string, cred *Credential) (*Credential, error) {
	form := url.Values{
		"csrf":          {cred.CsrfToken},
		"refresh_csrf":  {refreshCsrf},
		"source":        {refreshSource},
		"refresh_token": {cred.RefreshToken},
	}.Encode()

	req, err := c.newRequest(ctx, http.MethodPost, c.passportBase+cookieRefreshPath, strings.NewReader(form), cred)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		return nil, err
	}

	var response cookieRefreshResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if response.Code != 0 {
		return nil, &ApiError{Code: response.Code, Message: response.Message}
	}
	if response.Data.RefreshToken == "" {
		return nil, RefreshTokenMissingError
	}

	next := &Credential{
		SessionToken: cred.SessionToken,
		RefreshToken: response.Data.RefreshToken,
		CsrfToken:    cred.CsrfToken,
		UserID:       cred.UserID,
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Value == "" {
			continue
		}
		switch cookie.Name {
		case cookieSession:
			next.SessionToken = cookie.Value
		case cookieCsrf:
			next.CsrfToken = cookie.Value
		case cookieUserID:
			next.UserID = cookie.Value
		}
	}

	if err = c.store.Save(next); err != nil {
		return nil, err
	}

	return next, nil
}

// confirmRefresh invalidates the previous refresh token. The endpoint is known
// to answer non-zero even on success, so failures here are warnings, never
// errors.
func (c *Client) confirmRefresh(ctx context.Context, oldRefreshToken string, cred *Credential) {
	form := url.Values{
		"csrf":          {cred.CsrfToken},
		"refresh_token": {oldRefreshToken},
	}.Encode()

	req, err := c.newRequest(ctx, http.MethodPost, c.passportBase+confirmRefreshPath, strings.NewReader(form), cred)
	if err != nil {
		c.log.Warn("confirm refresh request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		c.log.Warn("confirm refresh request failed", zap.Error(err))
		return
	}

	var response struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		c.log.Warn("confirm refresh response unreadable", zap.Error(err))
		return
	}

	if response.Code != 0 {
		c.log.Warn("confirm refresh returned non-zero code",
			zap.Int64("code", response.Code),
			zap.String("message", response.Message))
	}
}

// RefreshCookies runs the full refresh exchange when the current credential
// set needs it. Every step before the exchange is side-effect free; the old
// refresh token is only invalidated, best effort, once the new set is saved.
func (c *Client) RefreshCookies(ctx context.Context) error {
	cred, err := c.store.Load()
	if err != nil {
		return err
	}
	if cred == nil {
		return NotLoggedInError
	}

	if !c.NeedsRefresh(ctx, cred) {
		return nil
	}

	oldRefreshToken := cred.RefreshToken

	correspondPath, err := EncryptChallenge(currentTimestampMs())
	if err != nil {
		return err
	}

	refreshCsrf, err := c.fetchRefreshCsrf(ctx, correspondPath, cred)
	if err != nil {
		return err
	}

	next, err := c.exchangeRefresh(ctx, refreshCsrf, cred)
	if err != nil {
		return err
	}

	c.confirmRefresh(ctx, oldRefreshToken, next)

	return nil
}
