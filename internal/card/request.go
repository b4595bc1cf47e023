package card

import (
	"encoding/json"
	"fmt"

	"github.com/yourorg/card-payments/internal/gateway"
	"github.com/yourorg/card-payments/internal/monitor"
)

// Wire shapes of the confirm-payment-source body.
type (
	confirmBody struct {
		PaymentSource      paymentSource       `json:"payment_source"`
		ApplicationContext *applicationContext `json:"application_context,omitempty"`
	}
	paymentSource struct {
		Card wireCard `json:"card"`
	}
	wireCard struct {
		Number         string          `json:"number"`
		Expiry         string          `json:"expiry"`
		SecurityCode   string          `json:"security_code"`
		Name           string          `json:"name,omitempty"`
		BillingAddress *wireAddress    `json:"billing_address,omitempty"`
		Attributes     *cardAttributes `json:"attributes,omitempty"`
	}
	wireAddress struct {
		AddressLine1 string `json:"address_line_1,omitempty"`
		AddressLine2 string `json:"address_line_2,omitempty"`
		AdminArea2   string `json:"admin_area_2,omitempty"`
		AdminArea1   string `json:"admin_area_1,omitempty"`
		PostalCode   string `json:"postal_code,omitempty"`
		CountryCode  string `json:"country_code"`
	}
	cardAttributes struct {
		Verification verification `json:"verification"`
	}
	verification struct {
		Method SCA `json:"method"`
	}
	applicationContext struct {
		ReturnURL string `json:"return_url,omitempty"`
		CancelURL string `json:"cancel_url,omitempty"`
	}
)

// Wire shapes of the UpdateVaultSetupToken variables.
type (
	vaultPaymentSource struct {
		Card vaultCard `json:"card"`
	}
	vaultCard struct {
		Number         string        `json:"number"`
		Expiry         string        `json:"expiry"`
		SecurityCode   string        `json:"securityCode"`
		Name           string        `json:"name,omitempty"`
		BillingAddress *vaultAddress `json:"billingAddress,omitempty"`
	}
	vaultAddress struct {
		AddressLine1 string `json:"addressLine1,omitempty"`
		AddressLine2 string `json:"addressLine2,omitempty"`
		AdminArea1   string `json:"adminArea1,omitempty"`
		AdminArea2   string `json:"adminArea2,omitempty"`
		PostalCode   string `json:"postalCode,omitempty"`
		CountryCode  string `json:"countryCode"`
	}
	updateSetupTokenData struct {
		UpdateVaultSetupToken *gateway.TokenDetails `json:"updateVaultSetupToken"`
	}
)

const updateSetupTokenOperation = "UpdateVaultSetupToken"

const updateSetupTokenQuery = `mutation UpdateVaultSetupToken(
    $clientID: String!,
    $vaultSetupToken: String!,
    $paymentSource: PaymentSource
) {
    updateVaultSetupToken(
        clientId: $clientID
        vaultSetupToken: $vaultSetupToken
        paymentSource: $paymentSource
    ) {
        id,
        status,
        links {
            rel, href
        }
    }
}`

var (
	confirmContract = monitor.MustEmbedded(monitor.ConfirmPaymentSourceSchema)
	vaultContract   = monitor.MustEmbedded(monitor.VaultCardSchema)
)

// requestBuilder turns validated requests into wire payloads and checks
// them against the published contracts.
type requestBuilder struct {
	clientID  string
	returnURL string
	cancelURL string
}

// confirmPaymentSource builds the REST call for request. Every failure is
// an encoding error.
func (b *requestBuilder) confirmPaymentSource(request CardRequest) (gateway.ConfirmPaymentSourceRequest, error) {
	if err := request.Validate(); err != nil {
		return gateway.ConfirmPaymentSourceRequest{}, encodingError(err)
	}
	sca := request.SCA
	if sca == "" {
		sca = SCAWhenRequired
	}
	body := confirmBody{
		PaymentSource: paymentSource{Card: wireCard{
			Number:         request.Card.normalizedNumber(),
			Expiry:         request.Card.Expiry(),
			SecurityCode:   request.Card.SecurityCode,
			Name:           request.Card.CardholderName,
			BillingAddress: toWireAddress(request.Card.BillingAddress),
			Attributes:     &cardAttributes{Verification: verification{Method: sca}},
		}},
	}
	if b.returnURL != "" || b.cancelURL != "" {
		body.ApplicationContext = &applicationContext{ReturnURL: b.returnURL, CancelURL: b.cancelURL}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return gateway.ConfirmPaymentSourceRequest{}, encodingError(err)
	}
	if err := confirmContract.Check(raw); err != nil {
		return gateway.ConfirmPaymentSourceRequest{}, encodingError(err)
	}
	return gateway.ConfirmPaymentSourceRequest{ClientID: b.clientID, OrderID: request.OrderID, Body: raw}, nil
}

// updateSetupToken builds the UpdateVaultSetupToken mutation for request.
func (b *requestBuilder) updateSetupToken(request VaultRequest) (gateway.GraphQLRequest, error) {
	if err := request.Validate(); err != nil {
		return gateway.GraphQLRequest{}, encodingError(err)
	}
	variables := map[string]any{
		"clientID":        b.clientID,
		"vaultSetupToken": request.SetupTokenID,
		"paymentSource": vaultPaymentSource{Card: vaultCard{
			Number:         request.Card.normalizedNumber(),
			Expiry:         request.Card.Expiry(),
			SecurityCode:   request.Card.SecurityCode,
			Name:           request.Card.CardholderName,
			BillingAddress: toVaultAddress(request.Card.BillingAddress),
		}},
	}
	raw, err := json.Marshal(variables)
	if err != nil {
		return gateway.GraphQLRequest{}, encodingError(err)
	}
	if err := vaultContract.Check(raw); err != nil {
		return gateway.GraphQLRequest{}, encodingError(fmt.Errorf("vault variables: %w", err))
	}
	return gateway.GraphQLRequest{
		OperationName: updateSetupTokenOperation,
		Query:         updateSetupTokenQuery,
		Variables:     variables,
	}, nil
}

func toWireAddress(a *Address) *wireAddress {
	if a == nil {
		return nil
	}
	return &wireAddress{
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		AdminArea2:   a.Locality,
		AdminArea1:   a.Region,
		PostalCode:   a.PostalCode,
		CountryCode:  a.CountryCode,
	}
}

func toVaultAddress(a *Address) *vaultAddress {
	if a == nil {
		return nil
	}
	return &vaultAddress{
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		AdminArea1:   a.Region,
		AdminArea2:   a.Locality,
		PostalCode:   a.PostalCode,
		CountryCode:  a.CountryCode,
	}
}
