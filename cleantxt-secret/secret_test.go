package cleantxtsecret

import (
	"context"
	"errors"
	"testing"

	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
	"github.com/tj/assert"
)

func TestParseTokens(t *testing.T) {
	tokens, err := ParseTokens(`{"alice":"token-a","bob":"token-b"}`)
	assert.Nil(t, err)

	token, err := tokens.Token(context.Background(), "alice")
	assert.Nil(t, err)
	assert.Equal(t, "token-a", token)

	_, err = tokens.Token(context.Background(), "carol")
	assert.True(t, errors.Is(err, cleantxtledger.ErrUnauthorized))

	empty, err := ParseTokens("")
	assert.Nil(t, err)
	assert.Len(t, empty, 0)

	_, err = ParseTokens(`[]`)
	assert.NotNil(t, err)
}
