package reporting

import (
	"fmt"
	"net/url"
)

// CardResult is the result of a successful order approval.
type CardResult struct {
	OrderID string
	// DeepLinkURL is the callback URL the challenge returned on, nil when
	// no challenge ran.
	DeepLinkURL *url.URL
}

// CardVaultResult is the result of a successful vault setup-token update.
type CardVaultResult struct {
	SetupTokenID string
	Status       string
}

// Kind tags an Outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindVaultSuccess
	KindFailure
	KindVaultFailure
	KindCancellation
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "SUCCESS"
	case KindVaultSuccess:
		return "VAULT_SUCCESS"
	case KindFailure:
		return "FAILURE"
	case KindVaultFailure:
		return "VAULT_FAILURE"
	case KindCancellation:
		return "CANCELED"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is the terminal result of one approve or vault flow. Only the
// field matching Kind is meaningful.
type Outcome struct {
	Kind        Kind
	Result      CardResult
	VaultResult CardVaultResult
	Err         error
}

func Success(result CardResult) Outcome { return Outcome{Kind: KindSuccess, Result: result} }

func VaultSuccess(result CardVaultResult) Outcome {
	return Outcome{Kind: KindVaultSuccess, VaultResult: result}
}

func Failure(err error) Outcome { return Outcome{Kind: KindFailure, Err: err} }

func VaultFailure(err error) Outcome { return Outcome{Kind: KindVaultFailure, Err: err} }

func Cancellation() Outcome { return Outcome{Kind: KindCancellation} }
