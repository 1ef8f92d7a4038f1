package shipper

import (
	"time"
)

// ShippingStatus is the host-side shipping state of an order.
type ShippingStatus string

const (
	StatusOpen       ShippingStatus = "open"
	StatusRegistered ShippingStatus = "registered"
)

// ProviderName is recorded on every shipping information record.
const ProviderName = "CargoConnect"

// ItemType classifies an order line. Lines of type ItemTypeExcluded
// (shipping costs, coupons, ...) are never sent to the carrier.
type ItemType string

const (
	ItemTypeVariation ItemType = "variation"
	ItemTypeExcluded  ItemType = "excluded"
)

// PackagingUnit is the carrier's classification of a package's physical form.
type PackagingUnit string

const (
	UnitEuropalette   PackagingUnit = "Europalette"
	UnitEinwegpalette PackagingUnit = "Einwegpalette"
	UnitHalbpalette   PackagingUnit = "Halbpalette"
	UnitSperrgutpaket PackagingUnit = "Sperrgutpaket"
	UnitGitterbox     PackagingUnit = "Gitterbox"
	UnitPaket         PackagingUnit = "Paket"
)

// ============================================================================
// Host platform data (read-only inputs)
// ============================================================================

// Address is a postal address as stored by the host platform.
type Address struct {
	FirstName   string
	LastName    string
	Company     string
	Street      string
	HouseNumber string
	PostalCode  string
	Town        string
	CountryCode string // ISO 3166-1 alpha-2
	Phone       string
	Email       string
}

// Warehouse is the sending location of an order.
type Warehouse struct {
	ID         int
	KeeperName string // display name of the warehouse keeper, e.g. "Timo Zenke"
	Address    Address
}

// OrderItem is one order line.
type OrderItem struct {
	Type          ItemType
	Number        string
	VariantSKU    string
	Name          string
	Quantity      int
	PurchasePrice *float64
}

// Order is the shipping-relevant view of a host order.
type Order struct {
	ID                  int
	ShippingProfileID   int
	ShippingProfileName string
	Sender              Warehouse
	DeliveryAddress     Address
	Items               []OrderItem
}

// OrderPackage is a package attached to an order on the host platform.
type OrderPackage struct {
	ID            int
	OrderID       int
	PackageTypeID int
	Weight        float64 // grams
	Colli         int
	Contents      string
	PackageNumber string // carrier tracking number once registered
	LabelPath     string // "<namespace>/<key>" once a label is stored
}

// PackageType holds the nominal dimensions of a package type in centimeters.
type PackageType struct {
	ID     int
	Name   string
	Length float64
	Width  float64
	Height float64
}

// ============================================================================
// Carrier request/response
// ============================================================================

// ShippingParty is a sender or receiver in carrier terms.
type ShippingParty struct {
	Forename   string
	Surname    string
	Street     string // street and house number combined
	Country    string // ISO 3166-1 alpha-2
	PostalCode string
	City       string
	Phone      string
	Email      string
	Company    string
}

// PackageSpec describes one physical package. Dimensions are nil when the
// package type does not carry usable (positive) values.
type PackageSpec struct {
	Unit     PackagingUnit
	Length   *float64
	Width    *float64
	Height   *float64
	Weight   float64 // kilograms
	Colli    int
	Contents string
}

// LineItem is an order line as submitted to the carrier.
type LineItem struct {
	Number     string
	Price      float64
	Quantity   int
	Name       string
	VariantSKU string
}

// ShipmentRequest is the consolidated shipment submitted for one order.
type ShipmentRequest struct {
	OrderID             int
	PickupDate          time.Time
	Sender              ShippingParty
	Receiver            ShippingParty
	ShippingProfileName string
	ShippingProfileID   int
	Packages            []PackageSpec
	Items               []LineItem
}

// Shipment is a successful carrier registration: the label document and one
// tracking number per submitted package, in package order.
type Shipment struct {
	Label           []byte // decoded PDF
	EncodedLabel    string // base64 as received, used for page retrieval
	TrackingNumbers []string
}

// ============================================================================
// Results returned to the host
// ============================================================================

// PackageLabel pairs a stored label reference with the package's tracking number.
type PackageLabel struct {
	LabelURL       string `json:"labelUrl"`
	ShipmentNumber string `json:"shipmentNumber"`
}

// ShipmentResult is the per-order outcome of a batch operation.
type ShipmentResult struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message"`
	NewPackageNumber bool           `json:"newPackagenumber"`
	Packages         []PackageLabel `json:"packages"`
}

// ShippingInformation is the status record written back to the host per order.
type ShippingInformation struct {
	OrderID        int            `json:"orderId"`
	TransactionID  string         `json:"transactionId"`
	Provider       string         `json:"shippingServiceProvider"`
	Status         ShippingStatus `json:"shippingStatus"`
	ShippingCosts  float64        `json:"shippingCosts"`
	AdditionalData []PackageLabel `json:"additionalData"`
	RegistrationAt string         `json:"registrationAt"`
	ShipmentAt     string         `json:"shipmentAt"`
}

// StoredObject is the result of a blob upload.
type StoredObject struct {
	Key  string
	Path string // "<namespace>/<key>"
}
