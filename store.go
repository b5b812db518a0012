package bg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	credentialsFileEnv = "BG_CREDENTIALS_FILE"

	keySessionToken = "BG_SESSION_TOKEN"
	keyRefreshToken = "BG_REFRESH_TOKEN"
	keyCsrfToken    = "BG_CSRF_TOKEN"
	keyUserID       = "BG_USER_ID"
)

// CredentialStore persists the session fields as a key="value" file, readable
// and writable only by the owner. It is the sole source of truth for session
// state across process restarts.
type CredentialStore struct {
	path string
}

func NewCredentialStore(path string) *CredentialStore {
	if path == "" {
		path = os.Getenv(credentialsFileEnv)
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		path = filepath.Join(home, ".bg-cmd", "credentials.env")
	}
	return &CredentialStore{path: path}
}

func (s *CredentialStore) Path() string {
	return s.path
}

// Load returns nil without error when no usable record exists: missing file,
// or any of the three required tokens empty.
func (s *CredentialStore) Load() (*Credential, error) {
	fields, err := godotenv.Read(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	cred := &Credential{
		SessionToken: fields[keySessionToken],
		RefreshToken: fields[keyRefreshToken],
		CsrfToken:    fields[keyCsrfToken],
		UserID:       fields[keyUserID],
	}
	if !cred.valid() {
		return nil, nil
	}

	return cred, nil
}

// Save replaces the whole record atomically: marshal to a temp file in the
// same directory, then rename over the final path. A reader never observes a
// partial record.
func (s *CredentialStore) Save(cred *Credential) error {
	content, err := godotenv.Marshal(map[string]string{
		keySessionToken: cred.SessionToken,
		keyRefreshToken: cred.RefreshToken,
		keyCsrfToken:    cred.CsrfToken,
		keyUserID:       cred.UserID,
	})
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.WriteString(content + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credentials file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close credentials file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod credentials file: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace credentials file: %w", err)
	}

	return nil
}

func (s *CredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials file: %w", err)
	}
	return nil
}

func (s *CredentialStore) IsLoggedIn() bool {
	cred, err := s.Load()
	if err != nil {
		return false
	}
	return cred != nil && cred.SessionToken != "" && cred.RefreshToken != ""
}
