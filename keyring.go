package main

import (
	"fmt"
	"os"
	"strings"

	gokeyring "github.com/zalando/go-keyring"
)

const (
	keyringService = "studio.inkwell.inkwell"
	keyringPrefix  = "apikey_"
)

// SaveAPIKeyToKeyring securely stores API keys in the OS keyring
func SaveAPIKeyToKeyring(provider, apiKey string) error {
	key := keyringPrefix + provider
	err := gokeyring.Set(keyringService, key, apiKey)
	if err != nil {
		return fmt.Errorf("failed to store API key in keyring: %w", err)
	}
	return nil
}

// GetAPIKeyFromKeyring retrieves API keys from an environment variable or the
// OS keyring. A missing key is not an error.
func GetAPIKeyFromKeyring(provider string) (string, error) {
	envVarName := "INKWELL_" + strings.ToUpper(provider) + "_API_KEY"
	if apiKey := os.Getenv(envVarName); apiKey != "" {
		return apiKey, nil
	}

	key := keyringPrefix + provider
	apiKey, err := gokeyring.Get(keyringService, key)
	if err != nil {
		if err == gokeyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to retrieve API key from keyring: %w", err)
	}
	return apiKey, nil
}

// DeleteAPIKeyFromKeyring removes API keys from the OS keyring
func DeleteAPIKeyFromKeyring(provider string) error {
	key := keyringPrefix + provider
	err := gokeyring.Delete(keyringService, key)
	if err != nil && err != gokeyring.ErrNotFound {
		return fmt.Errorf("failed to delete API key from keyring: %w", err)
	}
	return nil
}
