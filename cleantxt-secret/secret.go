// Package cleantxtsecret loads configuration secrets from AWS Secrets Manager.
package cleantxtsecret

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
	"github.com/savaki/secrets"
)

// LoadSecret decodes the json secret named secretName into data, which must
// be a pointer.
func LoadSecret(s *session.Session, secretName string, data interface{}) error {
	api := secrets.WithSecretsManager(secretsmanager.New(s))
	manager, err := secrets.NewManager(api)
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}

	if err := manager.Decode(secretName, data); err != nil {
		return fmt.Errorf("failed to load secret %v: %w", secretName, err)
	}
	return nil
}

// LoadTokens loads the HiveSigner access tokens stored in secretName as a
// json object of author to token.
func LoadTokens(s *session.Session, secretName string) (cleantxtledger.StaticTokens, error) {
	tokens := cleantxtledger.StaticTokens{}
	if err := LoadSecret(s, secretName, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// ParseTokens reads tokens from a json object of author to token, as passed
// through the environment for local runs.
func ParseTokens(raw string) (cleantxtledger.StaticTokens, error) {
	tokens := cleantxtledger.StaticTokens{}
	if raw == "" {
		return tokens, nil
	}
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse hivesigner tokens: %w", err)
	}
	return tokens, nil
}
