package config

import (
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions returns the credential option shared by the Google clients.
// Inline JSON wins over a credentials file; with neither, the client falls
// back to application default credentials.
func (g GCPConfig) ClientOptions() []option.ClientOption {
	switch {
	case strings.TrimSpace(g.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(g.CredentialsJSON))}
	case strings.TrimSpace(g.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(g.ApplicationCredentials)}
	}
	return nil
}
