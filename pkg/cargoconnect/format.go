package cargoconnect

import (
	"fmt"
	"strings"

	"github.com/tournevent/cargoconnect/pkg/shipper"
)

const pickupDateLayout = "2006-01-02"

// ============================================================================
// Conversion helpers: Shipper models -> API models
// ============================================================================

// FormatShipmentRequest converts a shipment into the submit-order body.
// Sender problems are reported with CodeInvalidPickup, receiver problems
// with CodeInvalidDelivery.
func FormatShipmentRequest(req *shipper.ShipmentRequest) (*SubmitOrderRequest, error) {
	if len(req.Packages) == 0 {
		return nil, fmt.Errorf("order %d: %w", req.OrderID, shipper.ErrNoPackages)
	}

	sender, err := FormatParty(req.Sender, shipper.CodeInvalidPickup)
	if err != nil {
		return nil, err
	}
	receiver, err := FormatParty(req.Receiver, shipper.CodeInvalidDelivery)
	if err != nil {
		return nil, err
	}

	packages := make([]Package, len(req.Packages))
	for i, p := range req.Packages {
		packages[i] = FormatPackage(p)
	}

	items := make([]Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = FormatItem(it)
	}

	return &SubmitOrderRequest{
		OrderID:             req.OrderID,
		PickupDate:          req.PickupDate.Format(pickupDateLayout),
		Sender:              sender,
		Receiver:            receiver,
		ShippingProfileName: req.ShippingProfileName,
		ShippingProfileID:   req.ShippingProfileID,
		Packages:            packages,
		Items:               items,
	}, nil
}

// FormatParty validates a shipping party and converts it to the wire shape.
// Phone, email and company are optional; everything else is required.
func FormatParty(p shipper.ShippingParty, code string) (Party, error) {
	required := []struct {
		field string
		value string
	}{
		{"firstname", p.Forename},
		{"lastname", p.Surname},
		{"street", p.Street},
		{"zip", p.PostalCode},
		{"city", p.City},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return Party{}, shipper.NewValidationError(code, r.field).WithCause(shipper.ErrInvalidAddress)
		}
	}

	country, ok := normalizeCountry(p.Country)
	if !ok {
		return Party{}, shipper.NewValidationError(code, "country").WithCause(shipper.ErrInvalidAddress)
	}

	return Party{
		FirstName: p.Forename,
		LastName:  p.Surname,
		Street:    p.Street,
		Country:   country,
		Zip:       p.PostalCode,
		City:      p.City,
		Phone:     p.Phone,
		Email:     optional(p.Email),
		Company:   optional(p.Company),
	}, nil
}

// FormatPackage converts a package spec to the wire shape.
func FormatPackage(p shipper.PackageSpec) Package {
	colli := p.Colli
	if colli <= 0 {
		colli = 1
	}
	return Package{
		Package:  string(p.Unit),
		Length:   p.Length,
		Width:    p.Width,
		Height:   p.Height,
		Weight:   p.Weight,
		Colli:    colli,
		Contents: p.Contents,
	}
}

// FormatItem converts an order line to the wire shape.
func FormatItem(it shipper.LineItem) Item {
	return Item{
		Number:     it.Number,
		Price:      it.Price,
		Quantity:   it.Quantity,
		Name:       it.Name,
		VariantSKU: it.VariantSKU,
	}
}

func normalizeCountry(code string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 2 {
		return "", false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return c, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
