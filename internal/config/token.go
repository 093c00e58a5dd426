package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const tokenAccount = "api_token"

// GetAPIToken returns the management API bearer token, generating and
// persisting one in the platform secret store on first use.
func GetAPIToken() (string, error) {
	return getAPIToken(keychainReader{}, keychainStore)
}

func getAPIToken(kc keychain, store func(service, account, value string) error) (string, error) {
	if v, err := kc.Get(keychainService, tokenAccount); err == nil && v != "" {
		return v, nil
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := store(keychainService, tokenAccount, token); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return token, nil
}
