package bg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.uber.org/zap"
)

const (
	qrGeneratePath = "/x/passport-login/web/qrcode/generate"
	qrPollPath     = "/x/passport-login/web/qrcode/poll"

	qrStatusConfirmed = 0
	qrStatusExpired   = 86038
	qrStatusScanned   = 86090
	qrStatusWaiting   = 86101
)

type QRSession struct {
	QRKey     string
	ScanURL   string
	CreatedAt time.Time
}

type qrGenerateResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    struct {
		URL       string `json:"url"`
		QrcodeKey string `json:"qrcode_key"`
	} `json:"data"`
}

type QRPollResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    struct {
		URL          string `json:"url"`
		RefreshToken string `json:"refresh_token"`
		Code         int64  `json:"code"`
		Message      string `json:"message"`
	} `json:"data"`
}

func (c *Client) GenerateQR(ctx context.Context) (*QRSession, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.passportBase+qrGeneratePath, nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		return nil, err
	}

	var response qrGenerateResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if response.Code != 0 {
		return nil, &ApiError{Code: response.Code, Message: response.Message}
	}

	return &QRSession{
		QRKey:     response.Data.QrcodeKey,
		ScanURL:   response.Data.URL,
		CreatedAt: time.Now(),
	}, nil
}

func (c *Client) displayQR(session *QRSession) {
	qrterminal.GenerateHalfBlock(session.ScanURL, qrterminal.L, c.out)
	fmt.Fprintf(c.out, "scan with the app, or open: %s\n", session.ScanURL)
}

func (c *Client) queryQR(ctx context.Context, qrKey string) (*QRPollResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.passportBase+qrPollPath+"?"+url.Values{
		"qrcode_key": {qrKey},
	}.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		return nil, err
	}

	var response QRPollResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	return &response, nil
}

// PollQR queries the scan status at a fixed interval until the login is
// confirmed, the code expires, or the attempts run out. The wait
// between queries aborts on context cancellation.
func (c *Client) PollQR(ctx context.Context, qrKey string) (*QRPollResponse, error) {
	lastStatus := int64(-1)

	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		response, err := c.queryQR(ctx, qrKey)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn("qr poll request failed", zap.Error(err))
		} else {
			status := response.Code
			if status == 0 {
				status = response.Data.Code
			}

			switch status {
			case qrStatusConfirmed:
				return response, nil
			case qrStatusExpired:
				return nil, QRCodeExpiredError
			case qrStatusScanned:
				if lastStatus != qrStatusScanned {
					fmt.Fprintln(c.out, "qr code scanned, confirm the login on your device")
				}
			case qrStatusWaiting:
				if lastStatus != qrStatusWaiting {
					fmt.Fprintln(c.out, "waiting for qr code scan...")
				}
			default:
				message := response.Data.Message
				if message == "" {
					message = response.Message
				}
				c.log.Warn("unknown qr poll status",
					zap.Int64("code", status),
					zap.String("message", message))
			}
			lastStatus = status
		}

		if attempt == c.pollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, QRPollTimeoutError
}

// parseLoginResult lifts the credential fields out of a confirmed poll
// response: the refresh token sits in the payload itself, the other three ride
// as query parameters of the redirect URL. Query parsing percent-decodes the
// session token; it is stored in that decoded, wire-ready form.
func parseLoginResult(response *QRPollResponse) (*Credential, error) {
	if response.Data.RefreshToken == "" {
		return nil, RefreshTokenMissingError
	}

	redirect, err := url.Parse(response.Data.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect url: %w", err)
	}

	query := redirect.Query()
	cred := &Credential{
		SessionToken: query.Get(cookieSession),
		RefreshToken: response.Data.RefreshToken,
		CsrfToken:    query.Get(cookieCsrf),
		UserID:       query.Get(cookieUserID),
	}

	if cred.SessionToken == "" {
		return nil, SessionTokenMissingError
	}
	if cred.CsrfToken == "" {
		return nil, CsrfTokenMissingError
	}

	return cred, nil
}

func (c *Client) Login(ctx context.Context) (*Credential, error) {
	session, err := c.GenerateQR(ctx)
	if err != nil {
		return nil, err
	}

	c.displayQR(session)

	response, err := c.PollQR(ctx, session.QRKey)
	if err != nil {
		return nil, err
	}

	cred, err := parseLoginResult(response)
	if err != nil {
		return nil, err
	}

	if err = c.store.Save(cred); err != nil {
		return nil, err
	}

	return cred, nil
}
