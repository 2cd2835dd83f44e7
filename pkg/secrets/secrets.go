package secrets

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "outreach"

// Accounts under which provider API keys are stored.
const (
	AccountSendinblue   = "sendinblue-api-key"
	AccountMailboxlayer = "mailboxlayer-api-key"
	AccountProspeo      = "prospeo-api-key"
	AccountSMTPPassword = "smtp-password"
)

// Resolve returns value when it is set, otherwise the keychain entry for
// account when lookup is enabled. Lookup failures yield "".
func Resolve(value, account string, useKeyring bool) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	if !useKeyring || account == "" {
		return ""
	}
	v, err := keyring.Get(KeyringService, account)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// Store saves a secret in the keychain.
func Store(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

// Delete removes a secret from the keychain.
func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
