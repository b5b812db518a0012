package bg

const (
	cookieSession = "SESSDATA"
	cookieCsrf    = "bili_jct"
	cookieUserID  = "DedeUserID"
)

// Credential carries the four session fields. The session token is stored in
// wire-ready form: percent-decoded once when parsed out of the login redirect
// URL, emitted as-is afterwards.
type Credential struct {
	SessionToken string
	RefreshToken string
	CsrfToken    string
	UserID       string
}

// UserID may legitimately be empty, the three tokens may not.
func (c *Credential) valid() bool {
	if c == nil {
		return false
	}
	return c.SessionToken != "" && c.RefreshToken != "" && c.CsrfToken != ""
}

// CookieHeader renders the fixed-order cookie line for authenticated requests:
// session, csrf, user id.
func (c *Credential) CookieHeader() string {
	return cookieSession + "=" + c.SessionToken + "; " +
		cookieCsrf + "=" + c.CsrfToken + "; " +
		cookieUserID + "=" + c.UserID
}
