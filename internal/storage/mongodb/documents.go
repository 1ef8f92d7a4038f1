package mongodb

import (
	"github.com/tournevent/cargoconnect/pkg/shipper"
)

type addressDoc struct {
	FirstName   string `bson:"firstName"`
	LastName    string `bson:"lastName"`
	Company     string `bson:"company,omitempty"`
	Street      string `bson:"street"`
	HouseNumber string `bson:"houseNumber"`
	PostalCode  string `bson:"postalCode"`
	Town        string `bson:"town"`
	CountryCode string `bson:"countryCode"`
	Phone       string `bson:"phone,omitempty"`
	Email       string `bson:"email,omitempty"`
}

type warehouseDoc struct {
	ID         int        `bson:"id"`
	KeeperName string     `bson:"keeperName"`
	Address    addressDoc `bson:"address"`
}

type itemDoc struct {
	Type          string   `bson:"type"`
	Number        string   `bson:"number"`
	VariantSKU    string   `bson:"variantSku"`
	Name          string   `bson:"name"`
	Quantity      int      `bson:"quantity"`
	PurchasePrice *float64 `bson:"purchasePrice,omitempty"`
}

type orderDoc struct {
	ID                  int          `bson:"_id"`
	ShippingProfileID   int          `bson:"shippingProfileId"`
	ShippingProfileName string       `bson:"shippingProfileName"`
	Sender              warehouseDoc `bson:"sender"`
	DeliveryAddress     addressDoc   `bson:"deliveryAddress"`
	Items               []itemDoc    `bson:"items"`
}

type packageDoc struct {
	ID            int     `bson:"_id"`
	OrderID       int     `bson:"orderId"`
	PackageTypeID int     `bson:"packageTypeId"`
	Weight        float64 `bson:"weight"`
	Colli         int     `bson:"colli"`
	Contents      string  `bson:"contents"`
	PackageNumber string  `bson:"packageNumber,omitempty"`
	LabelPath     string  `bson:"labelPath,omitempty"`
}

type packageTypeDoc struct {
	ID     int     `bson:"_id"`
	Name   string  `bson:"name"`
	Length float64 `bson:"length"`
	Width  float64 `bson:"width"`
	Height float64 `bson:"height"`
}

type packageLabelDoc struct {
	LabelURL       string `bson:"labelUrl"`
	ShipmentNumber string `bson:"shipmentNumber"`
}

type shippingInfoDoc struct {
	OrderID        int               `bson:"_id"`
	TransactionID  string            `bson:"transactionId"`
	Provider       string            `bson:"shippingServiceProvider"`
	Status         string            `bson:"shippingStatus"`
	ShippingCosts  float64           `bson:"shippingCosts"`
	AdditionalData []packageLabelDoc `bson:"additionalData"`
	RegistrationAt string            `bson:"registrationAt"`
	ShipmentAt     string            `bson:"shipmentAt"`
}

func toAddressDoc(a shipper.Address) addressDoc {
	return addressDoc(a)
}

func (d addressDoc) toAddress() shipper.Address {
	return shipper.Address(d)
}

func toOrderDoc(o *shipper.Order) orderDoc {
	items := make([]itemDoc, len(o.Items))
	for i, it := range o.Items {
		items[i] = itemDoc{
			Type:          string(it.Type),
			Number:        it.Number,
			VariantSKU:    it.VariantSKU,
			Name:          it.Name,
			Quantity:      it.Quantity,
			PurchasePrice: it.PurchasePrice,
		}
	}
	return orderDoc{
		ID:                  o.ID,
		ShippingProfileID:   o.ShippingProfileID,
		ShippingProfileName: o.ShippingProfileName,
		Sender: warehouseDoc{
			ID:         o.Sender.ID,
			KeeperName: o.Sender.KeeperName,
			Address:    toAddressDoc(o.Sender.Address),
		},
		DeliveryAddress: toAddressDoc(o.DeliveryAddress),
		Items:           items,
	}
}

func (d orderDoc) toOrder() *shipper.Order {
	items := make([]shipper.OrderItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = shipper.OrderItem{
			Type:          shipper.ItemType(it.Type),
			Number:        it.Number,
			VariantSKU:    it.VariantSKU,
			Name:          it.Name,
			Quantity:      it.Quantity,
			PurchasePrice: it.PurchasePrice,
		}
	}
	return &shipper.Order{
		ID:                  d.ID,
		ShippingProfileID:   d.ShippingProfileID,
		ShippingProfileName: d.ShippingProfileName,
		Sender: shipper.Warehouse{
			ID:         d.Sender.ID,
			KeeperName: d.Sender.KeeperName,
			Address:    d.Sender.Address.toAddress(),
		},
		DeliveryAddress: d.DeliveryAddress.toAddress(),
		Items:           items,
	}
}

func toPackageDoc(p shipper.OrderPackage) packageDoc {
	return packageDoc(p)
}

func (d packageDoc) toPackage() shipper.OrderPackage {
	return shipper.OrderPackage(d)
}

func toPackageTypeDoc(t shipper.PackageType) packageTypeDoc {
	return packageTypeDoc(t)
}

func (d packageTypeDoc) toPackageType() *shipper.PackageType {
	t := shipper.PackageType(d)
	return &t
}

func toShippingInfoDoc(info *shipper.ShippingInformation) shippingInfoDoc {
	labels := make([]packageLabelDoc, len(info.AdditionalData))
	for i, l := range info.AdditionalData {
		labels[i] = packageLabelDoc(l)
	}
	return shippingInfoDoc{
		OrderID:        info.OrderID,
		TransactionID:  info.TransactionID,
		Provider:       info.Provider,
		Status:         string(info.Status),
		ShippingCosts:  info.ShippingCosts,
		AdditionalData: labels,
		RegistrationAt: info.RegistrationAt,
		ShipmentAt:     info.ShipmentAt,
	}
}

func (d shippingInfoDoc) toShippingInformation() *shipper.ShippingInformation {
	labels := make([]shipper.PackageLabel, len(d.AdditionalData))
	for i, l := range d.AdditionalData {
		labels[i] = shipper.PackageLabel(l)
	}
	return &shipper.ShippingInformation{
		OrderID:        d.OrderID,
		TransactionID:  d.TransactionID,
		Provider:       d.Provider,
		Status:         shipper.ShippingStatus(d.Status),
		ShippingCosts:  d.ShippingCosts,
		AdditionalData: labels,
		RegistrationAt: d.RegistrationAt,
		ShipmentAt:     d.ShipmentAt,
	}
}
