package sdkerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreSDKError_Error(t *testing.T) {
	plain := New(3, DomainCardClient, "bad url")
	assert.Equal(t, "CardClientErrorDomain (3): bad url", plain.Error())

	cause := errors.New("boom")
	wrapped := Wrap(2, DomainCardClient, "3DS verification failed", cause)
	assert.Equal(t, "CardClientErrorDomain (2): 3DS verification failed: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestCoreSDKError_Is(t *testing.T) {
	a := Wrap(4, DomainCardClient, "no data", errors.New("x"))
	b := New(4, DomainCardClient, "something else")
	c := New(4, DomainAPIClient, "no data")

	assert.True(t, errors.Is(a, b), "same domain and code should match")
	assert.False(t, errors.Is(a, c), "different domain should not match")
	assert.False(t, errors.Is(a, errors.New("no data")))
}

func TestAs(t *testing.T) {
	sdkErr := New(1, DomainAPIClient, "decode")
	wrapped := fmt.Errorf("fetch: %w", sdkErr)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, sdkErr, got)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)

	_, ok = As(nil)
	assert.False(t, ok)
}

func TestCoreSDKError_CodeString(t *testing.T) {
	assert.Equal(t, "GraphQLClientErrorDomain:7", New(7, DomainGraphQLClient, "x").CodeString())
}
