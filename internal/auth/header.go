package auth

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// BuildAuthHeader derives the Authorization header from the stored
// credential. The returned header is empty when nothing is stored or the
// store cannot be read.
func BuildAuthHeader(store CredentialStore) http.Header {
	header := http.Header{}
	if store == nil {
		return header
	}

	creds, err := store.Load()
	if err != nil {
		log.Debugf("Failed to load credentials for auth header: %v", err)
		return header
	}
	if creds == nil || creds.AccessToken() == "" {
		return header
	}

	header.Set("Authorization", "Bearer "+creds.AccessToken())
	return header
}
