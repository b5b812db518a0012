package bg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// EnsureValidSession is the single entry point authenticated commands call
// before issuing requests: log in when no credential exists, otherwise refresh
// it, and on a failed refresh ask the user whether to start over with a fresh
// login.
func (c *Client) EnsureValidSession(ctx context.Context) error {
	if !c.store.IsLoggedIn() {
		if _, err := c.Login(ctx); err != nil {
			return err
		}
	}

	err := c.RefreshCookies(ctx)
	if err == nil {
		return nil
	}

	c.log.Warn("cookie refresh failed", zap.Error(err))

	if !c.confirm("session refresh failed, log in again?") {
		return ReloginDeclinedError
	}

	if err = c.store.Clear(); err != nil {
		return err
	}

	_, err = c.Login(ctx)
	return err
}

func promptYesNo(w io.Writer, r io.Reader, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N] ", prompt)

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
