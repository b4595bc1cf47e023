package card

import (
	"github.com/yourorg/card-payments/internal/sdkerror"
)

// Error codes in sdkerror.DomainCardClient.
const (
	CodeUnknown          = 0
	CodeEncoding         = 1
	CodeThreeDSecure     = 2
	CodeThreeDSecureURL  = 3
	CodeNoVaultTokenData = 4
	CodeVaultToken       = 5
)

// Sentinels for errors.Is. Errors reported to observers match these by
// domain and code and may carry a cause.
var (
	ErrUnknown = sdkerror.New(CodeUnknown, sdkerror.DomainCardClient,
		"An unknown error occurred. Contact developer.paypal.com/support.")
	ErrEncoding = sdkerror.New(CodeEncoding, sdkerror.DomainCardClient,
		"An error occurred constructing the confirm-payment-source request.")
	ErrThreeDSecure = sdkerror.New(CodeThreeDSecure, sdkerror.DomainCardClient,
		"3DS verification failed.")
	ErrThreeDSecureURL = sdkerror.New(CodeThreeDSecureURL, sdkerror.DomainCardClient,
		"An invalid 3DS URL was returned. Contact developer.paypal.com/support.")
	ErrNoVaultTokenData = sdkerror.New(CodeNoVaultTokenData, sdkerror.DomainCardClient,
		"An error occurred while vaulting a card.")
	ErrVaultToken = sdkerror.New(CodeVaultToken, sdkerror.DomainCardClient,
		"An unknown error occurred while vaulting a card.")
)

func encodingError(err error) error {
	return sdkerror.Wrap(CodeEncoding, sdkerror.DomainCardClient, ErrEncoding.ErrorDescription, err)
}

func threeDSecureError(err error) error {
	return sdkerror.Wrap(CodeThreeDSecure, sdkerror.DomainCardClient, ErrThreeDSecure.ErrorDescription, err)
}

func threeDSecureURLError(err error) error {
	return sdkerror.Wrap(CodeThreeDSecureURL, sdkerror.DomainCardClient, ErrThreeDSecureURL.ErrorDescription, err)
}
