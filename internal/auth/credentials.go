package auth

import (
	"encoding/json"
	"fmt"
	"os"

	directoryModel "socialnet/internal/model/directory"
)

// Credentials is the locally stored session bundle: a bearer token plus
// the identity it was issued to. The chat client reads the identity from
// it but never manages its lifecycle.
type Credentials struct {
	Token string              `json:"token"`
	User  directoryModel.User `json:"user"`
}

// LoadCredentials reads a credentials bundle from disk.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if creds.Token == "" || creds.User.ID == 0 {
		return Credentials{}, fmt.Errorf("credentials in %s are incomplete", path)
	}
	return creds, nil
}
