package cargoconnect_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cargoconnect/pkg/cargoconnect"
	"github.com/tournevent/cargoconnect/pkg/shipper"
)

func TestFormatShipmentRequest(t *testing.T) {
	req, err := cargoconnect.FormatShipmentRequest(sampleRequest())

	require.NoError(t, err)
	assert.Equal(t, 501, req.OrderID)
	assert.Equal(t, "2026-10-14", req.PickupDate)
	assert.Equal(t, "Spedition", req.ShippingProfileName)
	assert.Equal(t, 12, req.ShippingProfileID)
	assert.Equal(t, "Timo", req.Sender.FirstName)
	assert.Equal(t, "Zenke", req.Sender.LastName)
	require.NotNil(t, req.Sender.Company)
	assert.Equal(t, "plentymarkets GmbH", *req.Sender.Company)
	assert.Nil(t, req.Sender.Email)
	assert.Equal(t, "DE", req.Receiver.Country)
	require.Len(t, req.Items, 1)
	assert.Equal(t, "A-100-BLK", req.Items[0].VariantSKU)
	assert.Equal(t, 2, req.Items[0].Quantity)
}

func TestFormatShipmentRequest_JSONRoundTrip(t *testing.T) {
	req, err := cargoconnect.FormatShipmentRequest(sampleRequest())
	require.NoError(t, err)

	body, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded cargoconnect.SubmitOrderRequest
	require.NoError(t, json.Unmarshal(body, &decoded))

	company := "plentymarkets GmbH"
	assert.Equal(t, cargoconnect.SubmitOrderRequest{
		OrderID:    501,
		PickupDate: "2026-10-14",
		Sender: cargoconnect.Party{
			FirstName: "Timo",
			LastName:  "Zenke",
			Street:    "Bürgermeister-Brunner-Str. 15",
			Country:   "DE",
			Zip:       "34117",
			City:      "Kassel",
			Company:   &company,
		},
		Receiver: cargoconnect.Party{
			FirstName: "Erika",
			LastName:  "Mustermann",
			Street:    "Hauptstr. 1",
			Country:   "DE",
			Zip:       "10115",
			City:      "Berlin",
			Phone:     "+49 30 123456",
		},
		ShippingProfileName: "Spedition",
		ShippingProfileID:   12,
		Packages: []cargoconnect.Package{
			{Package: "Europalette", Length: float(120), Width: float(80), Height: float(100), Weight: 250, Colli: 1},
			{Package: "Paket", Weight: 50, Colli: 1},
		},
		Items: []cargoconnect.Item{
			{Number: "A-100", Price: 0, Quantity: 2, Name: "Regal", VariantSKU: "A-100-BLK"},
		},
	}, decoded)

	// unknown dimensions and absent contact fields go out as explicit nulls
	var raw struct {
		Receiver map[string]any   `json:"receiver"`
		Packages []map[string]any `json:"packages"`
	}
	require.NoError(t, json.Unmarshal(body, &raw))
	require.Len(t, raw.Packages, 2)
	for _, key := range []string{"length", "width", "height"} {
		v, ok := raw.Packages[1][key]
		assert.True(t, ok, key)
		assert.Nil(t, v, key)
	}
	for _, key := range []string{"email", "company"} {
		v, ok := raw.Receiver[key]
		assert.True(t, ok, key)
		assert.Nil(t, v, key)
	}
}

func TestFormatShipmentRequest_ValidationCodes(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*shipper.ShipmentRequest)
		wantCode string
	}{
		{"sender street", func(r *shipper.ShipmentRequest) { r.Sender.Street = "" }, shipper.CodeInvalidPickup},
		{"sender country", func(r *shipper.ShipmentRequest) { r.Sender.Country = "GER" }, shipper.CodeInvalidPickup},
		{"receiver lastname", func(r *shipper.ShipmentRequest) { r.Receiver.Surname = " " }, shipper.CodeInvalidDelivery},
		{"receiver zip", func(r *shipper.ShipmentRequest) { r.Receiver.PostalCode = "" }, shipper.CodeInvalidDelivery},
		{"receiver country digits", func(r *shipper.ShipmentRequest) { r.Receiver.Country = "4D" }, shipper.CodeInvalidDelivery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sampleRequest()
			tt.mutate(req)

			_, err := cargoconnect.FormatShipmentRequest(req)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, shipper.CodeOf(err))
			assert.True(t, errors.Is(err, shipper.ErrInvalidAddress))
		})
	}
}

func TestFormatShipmentRequest_NoPackages(t *testing.T) {
	req := sampleRequest()
	req.Packages = []shipper.PackageSpec{}

	_, err := cargoconnect.FormatShipmentRequest(req)

	assert.True(t, errors.Is(err, shipper.ErrNoPackages))
	assert.Equal(t, shipper.CodeNoPackages, shipper.CodeOf(err))
}

func TestFormatPackage_DefaultsColli(t *testing.T) {
	pkg := cargoconnect.FormatPackage(shipper.PackageSpec{Unit: shipper.UnitGitterbox, Weight: 12.5})

	assert.Equal(t, "Gitterbox", pkg.Package)
	assert.Equal(t, 1, pkg.Colli)
	assert.Equal(t, 12.5, pkg.Weight)
	assert.Nil(t, pkg.Length)
}

func TestFormatParty_OptionalFields(t *testing.T) {
	party, err := cargoconnect.FormatParty(shipper.ShippingParty{
		Forename:   "Erika",
		Surname:    "Mustermann",
		Street:     "Hauptstr. 1",
		Country:    " at ",
		PostalCode: "1010",
		City:       "Wien",
		Email:      "erika@example.com",
	}, shipper.CodeInvalidDelivery)

	require.NoError(t, err)
	assert.Equal(t, "AT", party.Country)
	assert.Equal(t, "", party.Phone)
	require.NotNil(t, party.Email)
	assert.Equal(t, "erika@example.com", *party.Email)
	assert.Nil(t, party.Company)
}
