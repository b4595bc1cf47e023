// Package card approves orders with a card payment source, running the
// 3-D Secure challenge when the API asks for one, and updates vault setup
// tokens with card details.
package card

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/yourorg/card-payments/internal/reporting"
)

type (
	CardResult      = reporting.CardResult
	CardVaultResult = reporting.CardVaultResult
)

// SCA selects when strong customer authentication is requested.
type SCA string

const (
	SCAWhenRequired SCA = "SCA_WHEN_REQUIRED"
	SCAAlways       SCA = "SCA_ALWAYS"
)

// Address is a billing address.
type Address struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	Locality     string `json:"locality,omitempty"`
	Region       string `json:"region,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code"`
}

// Card holds the raw card fields entered by the payer.
type Card struct {
	Number          string   `json:"number"`
	ExpirationMonth string   `json:"expiration_month"` // "01".."12"
	ExpirationYear  string   `json:"expiration_year"`  // four digits
	SecurityCode    string   `json:"security_code"`
	CardholderName  string   `json:"cardholder_name,omitempty"`
	BillingAddress  *Address `json:"billing_address,omitempty"`
}

// CardRequest approves OrderID with Card.
type CardRequest struct {
	OrderID string `json:"order_id"`
	Card    Card   `json:"card"`
	SCA     SCA    `json:"sca,omitempty"`
}

// VaultRequest attaches Card to the vault setup token SetupTokenID.
type VaultRequest struct {
	SetupTokenID string `json:"setup_token_id"`
	Card         Card   `json:"card"`
}

var (
	numberPattern = regexp.MustCompile(`^[0-9]{12,19}$`)
	monthPattern  = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
	yearPattern   = regexp.MustCompile(`^[0-9]{4}$`)
	cvvPattern    = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// normalizedNumber strips the spaces and dashes payers type between digit groups.
func (c Card) normalizedNumber() string {
	return strings.NewReplacer(" ", "", "-", "").Replace(c.Number)
}

// Expiry renders the expiration as YYYY-MM.
func (c Card) Expiry() string {
	return c.ExpirationYear + "-" + c.ExpirationMonth
}

// Validate checks the card fields before they are encoded.
func (c Card) Validate() error {
	if !numberPattern.MatchString(c.normalizedNumber()) {
		return fmt.Errorf("card number must be 12 to 19 digits")
	}
	if !monthPattern.MatchString(c.ExpirationMonth) {
		return fmt.Errorf("expiration month %q must be 01 to 12", c.ExpirationMonth)
	}
	if !yearPattern.MatchString(c.ExpirationYear) {
		return fmt.Errorf("expiration year %q must be four digits", c.ExpirationYear)
	}
	if !cvvPattern.MatchString(c.SecurityCode) {
		return fmt.Errorf("security code must be 3 or 4 digits")
	}
	if c.BillingAddress != nil && len(c.BillingAddress.CountryCode) != 2 {
		return fmt.Errorf("billing address country code %q must be ISO 3166-1 alpha-2", c.BillingAddress.CountryCode)
	}
	return nil
}

// Validate checks that the request can be sent.
func (r CardRequest) Validate() error {
	if strings.TrimSpace(r.OrderID) == "" {
		return fmt.Errorf("order id is required")
	}
	switch r.SCA {
	case "", SCAWhenRequired, SCAAlways:
	default:
		return fmt.Errorf("unknown SCA %q", r.SCA)
	}
	return r.Card.Validate()
}

// Validate checks that the request can be sent.
func (r VaultRequest) Validate() error {
	if strings.TrimSpace(r.SetupTokenID) == "" {
		return fmt.Errorf("setup token id is required")
	}
	return r.Card.Validate()
}

// parseChallengeURL accepts only absolute URLs with a host.
func parseChallengeURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("challenge URL %q is not absolute", raw)
	}
	return u, nil
}
