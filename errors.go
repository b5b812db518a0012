package bg

import (
	"errors"
	"fmt"
)

var (
	StoreNilError            = errors.New("credential store is nil")
	NotLoggedInError         = errors.New("not logged in")
	QRCodeExpiredError       = errors.New("qr code expired")
	QRPollTimeoutError       = errors.New("qr poll timed out")
	SessionTokenMissingError = errors.New("session token missing in response")
	RefreshTokenMissingError = errors.New("refresh token missing in response")
	CsrfTokenMissingError    = errors.New("csrf token missing in response")
	RefreshCsrfMissingError  = errors.New("refresh csrf marker missing in correspond page")
	CryptoUnavailableError   = errors.New("rsa-oaep encryption unavailable")
	ReloginDeclinedError     = errors.New("re-login declined")
)

type ApiError struct {
	Code    int64
	Message string
}

func (e *ApiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: code %d", e.Code)
	}
	return fmt.Sprintf("api error: code %d: %s", e.Code, e.Message)
}
