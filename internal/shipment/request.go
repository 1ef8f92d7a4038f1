package shipment

import (
	"strings"
	"time"

	"github.com/tournevent/cargoconnect/pkg/shipper"
)

// BuildShipmentRequest assembles the carrier request for one order.
// packageTypes is keyed by package type id; a missing entry yields a
// generic package without dimensions.
func BuildShipmentRequest(
	order *shipper.Order,
	packages []shipper.OrderPackage,
	packageTypes map[int]*shipper.PackageType,
	pickupDate time.Time,
	defaultPickup shipper.ShippingParty,
) *shipper.ShipmentRequest {
	specs := make([]shipper.PackageSpec, len(packages))
	for i, pkg := range packages {
		specs[i] = shipper.NewPackageSpec(pkg, packageTypes[pkg.PackageTypeID])
	}

	return &shipper.ShipmentRequest{
		OrderID:             order.ID,
		PickupDate:          midnight(pickupDate),
		Sender:              SenderParty(order.Sender, defaultPickup),
		Receiver:            ReceiverParty(order.DeliveryAddress),
		ShippingProfileName: order.ShippingProfileName,
		ShippingProfileID:   order.ShippingProfileID,
		Packages:            specs,
		Items:               LineItems(order.Items),
	}
}

// SenderParty derives the pickup party from the sending warehouse. The
// keeper's display name is split on whitespace into forename and surname;
// with fewer than two tokens the configured default names are used. Empty
// address fields fall back to the default pickup party.
func SenderParty(w shipper.Warehouse, defaults shipper.ShippingParty) shipper.ShippingParty {
	forename, surname, ok := splitKeeperName(w.KeeperName)
	if !ok {
		forename, surname = defaults.Forename, defaults.Surname
	}

	a := w.Address
	return shipper.ShippingParty{
		Forename:   forename,
		Surname:    surname,
		Street:     orDefault(joinStreet(a.Street, a.HouseNumber), defaults.Street),
		Country:    orDefault(a.CountryCode, defaults.Country),
		PostalCode: orDefault(a.PostalCode, defaults.PostalCode),
		City:       orDefault(a.Town, defaults.City),
		Phone:      orDefault(a.Phone, defaults.Phone),
		Email:      orDefault(a.Email, defaults.Email),
		Company:    orDefault(a.Company, defaults.Company),
	}
}

// ReceiverParty converts the delivery address. No defaults apply.
func ReceiverParty(a shipper.Address) shipper.ShippingParty {
	return shipper.ShippingParty{
		Forename:   a.FirstName,
		Surname:    a.LastName,
		Street:     joinStreet(a.Street, a.HouseNumber),
		Country:    a.CountryCode,
		PostalCode: a.PostalCode,
		City:       a.Town,
		Phone:      a.Phone,
		Email:      a.Email,
		Company:    a.Company,
	}
}

// LineItems converts order lines, dropping excluded ones. A missing
// purchase price is sent as 0.
func LineItems(items []shipper.OrderItem) []shipper.LineItem {
	out := make([]shipper.LineItem, 0, len(items))
	for _, it := range items {
		if it.Type == shipper.ItemTypeExcluded {
			continue
		}
		price := 0.0
		if it.PurchasePrice != nil {
			price = *it.PurchasePrice
		}
		out = append(out, shipper.LineItem{
			Number:     it.Number,
			Price:      price,
			Quantity:   it.Quantity,
			Name:       it.Name,
			VariantSKU: it.VariantSKU,
		})
	}
	return out
}

func splitKeeperName(name string) (forename, surname string, ok bool) {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], strings.Join(fields[1:], " "), true
}

func joinStreet(street, number string) string {
	return strings.TrimSpace(strings.TrimSpace(street) + " " + strings.TrimSpace(number))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
