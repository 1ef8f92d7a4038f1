package shipment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cargoconnect/internal/events"
	"github.com/tournevent/cargoconnect/internal/shipment"
	"github.com/tournevent/cargoconnect/internal/storage/memory"
	"github.com/tournevent/cargoconnect/pkg/shipper"
	"github.com/tournevent/cargoconnect/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.FixedZone("CEST", 2*60*60))

type fixture struct {
	carrier   *mock.Client
	orders    *memory.OrderStore
	blobs     *memory.BlobStore
	status    *memory.StatusStore
	publisher *recordingPublisher
	metrics   *recordingMetrics
	service   *shipment.Service
}

func newFixture(t *testing.T, opts ...func(*shipment.Config, *shipment.Deps)) *fixture {
	t.Helper()
	f := &fixture{
		carrier:   mock.New(shipper.ProviderName),
		orders:    memory.NewOrderStore(),
		blobs:     memory.NewBlobStore(),
		status:    memory.NewStatusStore(),
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{outcomes: map[string]int{}},
	}

	cfg := shipment.Config{
		DefaultPickup: shipper.ShippingParty{
			Forename:   "Lager",
			Surname:    "Team",
			Street:     "Industriestr. 5",
			Country:    "DE",
			PostalCode: "34117",
			City:       "Kassel",
			Company:    "plentymarkets GmbH",
		},
		Now: func() time.Time { return fixedNow },
	}
	deps := shipment.Deps{
		Carrier:      f.carrier,
		Orders:       f.orders,
		PackageTypes: f.orders,
		Labels:       f.blobs,
		Status:       f.status,
		Events:       f.publisher,
		Logger:       otelzap.New(zap.NewNop()),
		Metrics:      f.metrics,
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}
	f.service = shipment.New(cfg, deps)
	return f
}

func (f *fixture) addOrder(id int, packages ...shipper.OrderPackage) {
	f.orders.AddOrder(shipper.Order{
		ID:                  id,
		ShippingProfileID:   12,
		ShippingProfileName: "Spedition",
		Sender: shipper.Warehouse{
			ID:         1,
			KeeperName: "Timo Zenke",
			Address: shipper.Address{
				Street:      "Bürgermeister-Brunner-Str.",
				HouseNumber: "15",
				PostalCode:  "34117",
				Town:        "Kassel",
				CountryCode: "DE",
			},
		},
		DeliveryAddress: shipper.Address{
			FirstName:   "Erika",
			LastName:    "Mustermann",
			Street:      "Hauptstr.",
			HouseNumber: "1",
			PostalCode:  "10115",
			Town:        "Berlin",
			CountryCode: "DE",
		},
		Items: []shipper.OrderItem{
			{Type: shipper.ItemTypeVariation, Number: "A-100", VariantSKU: "A-100-BLK", Name: "Regal", Quantity: 2},
			{Type: shipper.ItemTypeExcluded, Name: "Versandkosten"},
		},
	}, packages...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type recordingMetrics struct {
	mu            sync.Mutex
	outcomes      map[string]int
	storeFailures int
}

func (m *recordingMetrics) RecordRegistration(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *recordingMetrics) RecordLabelStoreFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeFailures++
}

// failingBlobStore fails every upload.
type failingBlobStore struct {
	*memory.BlobStore
}

func (failingBlobStore) Upload(ctx context.Context, namespace, key string, body []byte) (*shipper.StoredObject, error) {
	return nil, errors.New("bucket unavailable")
}

// failingStatusStore fails every write.
type failingStatusStore struct {
	*memory.StatusStore
}

func (failingStatusStore) Save(ctx context.Context, info *shipper.ShippingInformation) error {
	return errors.New("status store down")
}

func (failingStatusStore) Reset(ctx context.Context, orderID int) error {
	return errors.New("status store down")
}

func seedScenarioOrder501(f *fixture) {
	f.orders.AddPackageType(shipper.PackageType{ID: 1, Name: "Europalette", Length: 120, Width: 80, Height: 100})
	f.orders.AddPackageType(shipper.PackageType{ID: 2, Name: "generic pallet", Length: 100, Width: 100, Height: 150})
	f.addOrder(501,
		shipper.OrderPackage{ID: 11, PackageTypeID: 1, Weight: 250000},
		shipper.OrderPackage{ID: 12, PackageTypeID: 2, Weight: 50000},
	)
}

func TestRegisterShipments_TwoPackageOrder(t *testing.T) {
	f := newFixture(t)
	seedScenarioOrder501(f)
	f.carrier.OnSubmitOrder = func(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Shipment, error) {
		return &shipper.Shipment{Label: []byte("%PDF doc"), EncodedLabel: "JVBERiBkb2M=", TrackingNumbers: []string{"DE1", "DE2"}}, nil
	}

	results, err := f.service.RegisterShipments(context.Background(), []int{501})

	require.NoError(t, err)
	res := results[501]
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "Success:1000 - Label created", res.Message)
	assert.False(t, res.NewPackageNumber)
	assert.Equal(t, []shipper.PackageLabel{
		{LabelURL: "memory://CargoConnect/11.pdf", ShipmentNumber: "DE1"},
		{LabelURL: "memory://CargoConnect/12.pdf", ShipmentNumber: "DE2"},
	}, res.Packages)

	submitted := f.carrier.Submitted()
	require.Len(t, submitted, 1)
	req := submitted[0]
	require.Len(t, req.Packages, 2)
	assert.Equal(t, shipper.UnitEuropalette, req.Packages[0].Unit)
	assert.Equal(t, 250.0, req.Packages[0].Weight)
	assert.Equal(t, 120.0, *req.Packages[0].Length)
	assert.Equal(t, shipper.UnitPaket, req.Packages[1].Unit)
	assert.Equal(t, 50.0, req.Packages[1].Weight)
	assert.Equal(t, 150.0, *req.Packages[1].Height)
	assert.Equal(t, "Timo", req.Sender.Forename)
	assert.Equal(t, "Zenke", req.Sender.Surname)
	assert.Equal(t, "Bürgermeister-Brunner-Str. 15", req.Sender.Street)
	assert.Equal(t, "plentymarkets GmbH", req.Sender.Company)
	assert.Equal(t, "Hauptstr. 1", req.Receiver.Street)
	require.Len(t, req.Items, 1)
	assert.Equal(t, 0.0, req.Items[0].Price)

	// one page per package, 1-based
	pages := f.carrier.LabelPageCalls()
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Page)
	assert.Equal(t, 2, pages[1].Page)
	assert.Equal(t, "JVBERiBkb2M=", pages[0].EncodedLabel)

	body, err := f.blobs.Get(context.Background(), "CargoConnect", "12.pdf")
	require.NoError(t, err)
	assert.Equal(t, mock.PageLabel(2), body)

	p11, _ := f.orders.Package(11)
	p12, _ := f.orders.Package(12)
	assert.Equal(t, "DE1", p11.PackageNumber)
	assert.Equal(t, "CargoConnect/11.pdf", p11.LabelPath)
	assert.Equal(t, "DE2", p12.PackageNumber)

	info, err := f.status.Get(context.Background(), 501)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "DE1,DE2", info.TransactionID)
	assert.Equal(t, "CargoConnect", info.Provider)
	assert.Equal(t, shipper.StatusRegistered, info.Status)
	assert.Equal(t, 0.0, info.ShippingCosts)
	assert.Equal(t, "2026-10-14T00:00:00+02:00", info.ShipmentAt)
	assert.Equal(t, "2026-10-14T09:30:00+02:00", info.RegistrationAt)
	assert.Equal(t, res.Packages, info.AdditionalData)

	evts := f.publisher.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeShipmentRegistered, evts[0].Type)
	assert.Equal(t, 501, evts[0].OrderID)
	assert.Equal(t, "DE1,DE2", evts[0].TransactionID)

	assert.Equal(t, 1, f.metrics.outcomes[shipment.OutcomeSuccess])
}

func TestRegisterShipments_SinglePackageStoresWholeDocument(t *testing.T) {
	f := newFixture(t)
	f.addOrder(600, shipper.OrderPackage{ID: 61, Weight: 1000})

	results, err := f.service.RegisterShipments(context.Background(), []int{600})

	require.NoError(t, err)
	assert.True(t, results[600].Success)
	assert.Empty(t, f.carrier.LabelPageCalls())

	body, err := f.blobs.Get(context.Background(), "CargoConnect", "61.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 mock label order 600"), body)
}

func TestRegisterShipments_NoPackages(t *testing.T) {
	f := newFixture(t)
	f.addOrder(502)

	results, err := f.service.RegisterShipments(context.Background(), []int{502})

	require.NoError(t, err)
	res := results[502]
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "Error:1001 - Add at least 1 Package before submission", res.Message)
	assert.Empty(t, f.carrier.Submitted())

	info, err := f.status.Get(context.Background(), 502)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestRegisterShipments_BusinessError(t *testing.T) {
	f := newFixture(t)
	f.addOrder(503, shipper.OrderPackage{ID: 31, Weight: 1000})
	f.carrier.OnSubmitOrder = func(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Shipment, error) {
		return nil, shipper.NewBusinessError(shipper.ProviderName, "invalid address")
	}

	results, err := f.service.RegisterShipments(context.Background(), []int{503})

	require.NoError(t, err)
	res := results[503]
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "invalid address")
	assert.Equal(t, "Error:1002 - Order validation failed: invalid address", res.Message)
	assert.Empty(t, res.Packages)

	assert.Zero(t, f.blobs.Len(), "no storage call on carrier rejection")
	info, err := f.status.Get(context.Background(), 503)
	require.NoError(t, err)
	assert.Nil(t, info, "no status record on carrier rejection")
	assert.Empty(t, f.publisher.Events())
}

func TestRegisterShipments_ValidationErrorCode(t *testing.T) {
	f := newFixture(t)
	f.addOrder(504, shipper.OrderPackage{ID: 41})
	f.carrier.OnSubmitOrder = func(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Shipment, error) {
		return nil, shipper.NewValidationError(shipper.CodeInvalidDelivery, "zip")
	}

	results, err := f.service.RegisterShipments(context.Background(), []int{504})

	require.NoError(t, err)
	assert.Equal(t, `Error:1004 - Missing or invalid delivery address: missing or invalid field "zip"`, results[504].Message)
}

func TestRegisterShipments_FailureIsolation(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			f := newFixture(t, func(cfg *shipment.Config, _ *shipment.Deps) {
				cfg.Workers = workers
			})
			ids := []int{701, 702, 703, 704, 705}
			for i, id := range ids {
				f.addOrder(id, shipper.OrderPackage{ID: id*10 + i, Weight: 1000})
			}
			f.carrier.OnSubmitOrder = func(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Shipment, error) {
				if req.OrderID == 703 {
					return nil, shipper.NewTransportError(shipper.ProviderName, "connection reset")
				}
				return &shipper.Shipment{Label: []byte("%PDF"), TrackingNumbers: []string{fmt.Sprintf("T%d", req.OrderID)}}, nil
			}

			results, err := f.service.RegisterShipments(context.Background(), ids)

			require.NoError(t, err)
			require.Len(t, results, len(ids))
			successes := 0
			for _, id := range ids {
				if results[id].Success {
					successes++
				}
			}
			assert.Equal(t, len(ids)-1, successes)
			assert.False(t, results[703].Success)
			assert.Equal(t, "Error:9999 - Other issue, please handle inside Connect: connection reset", results[703].Message)
			assert.Len(t, f.carrier.Submitted(), len(ids))

			info, err := f.status.Get(context.Background(), 703)
			require.NoError(t, err)
			assert.Nil(t, info)
			info, err = f.status.Get(context.Background(), 705)
			require.NoError(t, err)
			assert.Equal(t, "T705", info.TransactionID)
		})
	}
}

func TestRegisterShipments_ConcurrentWorkers(t *testing.T) {
	f := newFixture(t, func(cfg *shipment.Config, _ *shipment.Deps) {
		cfg.Workers = 4
	})
	const registeredID = 7
	ids := make([]int, 0, 20)
	for id := 1; id <= 20; id++ {
		ids = append(ids, id)
		f.addOrder(id,
			shipper.OrderPackage{ID: id*100 + 1, Weight: 1000},
			shipper.OrderPackage{ID: id*100 + 2, Weight: 2000},
		)
	}
	require.NoError(t, f.status.Save(context.Background(), &shipper.ShippingInformation{OrderID: registeredID, Status: shipper.StatusRegistered}))

	results, err := f.service.RegisterShipments(context.Background(), ids)

	require.NoError(t, err)
	require.Len(t, results, len(ids))
	assert.Len(t, f.carrier.Submitted(), len(ids)-1)

	for _, id := range ids {
		res := results[id]
		require.NotNil(t, res, "order %d", id)
		if id == registeredID {
			assert.False(t, res.Success)
			assert.Equal(t, "Error:1005 - Shipment already registered", res.Message)
			continue
		}
		require.True(t, res.Success, "order %d: %s", id, res.Message)
		require.Len(t, res.Packages, 2)
		for i := 0; i < 2; i++ {
			tracking := fmt.Sprintf("MOCK-%d-%d", id, i+1)
			assert.Equal(t, tracking, res.Packages[i].ShipmentNumber)
			p, ok := f.orders.Package(id*100 + i + 1)
			require.True(t, ok)
			assert.Equal(t, tracking, p.PackageNumber)
		}

		info, err := f.status.Get(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, info, "order %d", id)
		assert.Equal(t, fmt.Sprintf("MOCK-%d-1,MOCK-%d-2", id, id), info.TransactionID)
	}

	// the pre-existing record of the skipped order is left untouched
	info, err := f.status.Get(context.Background(), registeredID)
	require.NoError(t, err)
	assert.Empty(t, info.TransactionID)
	assert.Equal(t, len(ids)-1, f.metrics.outcomes[shipment.OutcomeSuccess])
	assert.Equal(t, 1, f.metrics.outcomes[shipment.OutcomeAlreadyRegistered])
}

func TestRegisterShipments_TrackingAlignment(t *testing.T) {
	f := newFixture(t)
	f.addOrder(800,
		shipper.OrderPackage{ID: 81},
		shipper.OrderPackage{ID: 82},
		shipper.OrderPackage{ID: 83},
	)
	f.carrier.OnSubmitOrder = func(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Shipment, error) {
		return &shipper.Shipment{Label: []byte("%PDF"), EncodedLabel: "JVBERg==", TrackingNumbers: []string{"T1", "T2", "T3"}}, nil
	}

	results, err := f.service.RegisterShipments(context.Background(), []int{800})

	require.NoError(t, err)
	require.True(t, results[800].Success)
	for i, id := range []int{81, 82, 83} {
		p, ok := f.orders.Package(id)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("T%d", i+1), p.PackageNumber)
		assert.Equal(t, fmt.Sprintf("T%d", i+1), results[800].Packages[i].ShipmentNumber)
	}
}

func TestRegisterShipments_TrackingCountMismatch(t *testing.T) {
	f := newFixture(t)
	f.addOrder(801, shipper.OrderPackage{ID: 91}, shipper.OrderPackage{ID: 92})
	f.carrier.OnSubmitOrder = func(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Shipment, error) {
		return &shipper.Shipment{Label: []byte("%PDF"), TrackingNumbers: []string{"T1"}}, nil
	}

	results, err := f.service.RegisterShipments(context.Background(), []int{801})

	require.NoError(t, err)
	assert.False(t, results[801].Success)
	assert.Contains(t, results[801].Message, "Error:9999")
	assert.Zero(t, f.blobs.Len())
}

func TestRegisterShipments_NullDimensions(t *testing.T) {
	f := newFixture(t)
	f.orders.AddPackageType(shipper.PackageType{ID: 5, Name: "Gitterbox", Length: 120, Width: 0, Height: 97})
	f.addOrder(900, shipper.OrderPackage{ID: 95, PackageTypeID: 5, Weight: 2000, Colli: 2})

	_, err := f.service.RegisterShipments(context.Background(), []int{900})
	require.NoError(t, err)

	submitted := f.carrier.Submitted()
	require.Len(t, submitted, 1)
	pkg := submitted[0].Packages[0]
	assert.Equal(t, shipper.UnitGitterbox, pkg.Unit)
	assert.Nil(t, pkg.Length)
	assert.Nil(t, pkg.Width)
	assert.Nil(t, pkg.Height)
	assert.Equal(t, 2.0, pkg.Weight)
	assert.Equal(t, 2, pkg.Colli)
}

func TestRegisterShipments_AlreadyRegistered(t *testing.T) {
	f := newFixture(t)
	f.addOrder(910, shipper.OrderPackage{ID: 96})
	require.NoError(t, f.status.Save(context.Background(), &shipper.ShippingInformation{OrderID: 910, Status: shipper.StatusRegistered}))

	results, err := f.service.RegisterShipments(context.Background(), []int{910})

	require.NoError(t, err)
	assert.False(t, results[910].Success)
	assert.Equal(t, "Error:1005 - Shipment already registered", results[910].Message)
	assert.Empty(t, f.carrier.Submitted())
	assert.Equal(t, 1, f.metrics.outcomes[shipment.OutcomeAlreadyRegistered])
}

func TestRegisterShipments_OpenStatusIsRegistered(t *testing.T) {
	f := newFixture(t)
	f.addOrder(911, shipper.OrderPackage{ID: 97})
	require.NoError(t, f.status.Save(context.Background(), &shipper.ShippingInformation{OrderID: 911, Status: shipper.StatusOpen}))

	results, err := f.service.RegisterShipments(context.Background(), []int{911})

	require.NoError(t, err)
	assert.True(t, results[911].Success)
}

func TestRegisterShipments_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	results, err := f.service.RegisterShipments(context.Background(), []int{404})

	require.NoError(t, err)
	assert.False(t, results[404].Success)
	assert.Contains(t, results[404].Message, "Error:9999")
	assert.Contains(t, results[404].Message, "order not found")
}

func TestRegisterShipments_NoOrderIDs(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.RegisterShipments(context.Background(), nil)

	assert.True(t, errors.Is(err, shipper.ErrNoOrderIDs))
}

func TestRegisterShipments_StorageFailureAfterRegistration(t *testing.T) {
	f := newFixture(t, func(_ *shipment.Config, deps *shipment.Deps) {
		deps.Labels = failingBlobStore{memory.NewBlobStore()}
	})
	f.addOrder(920, shipper.OrderPackage{ID: 98})

	results, err := f.service.RegisterShipments(context.Background(), []int{920})

	require.NoError(t, err)
	assert.False(t, results[920].Success)
	assert.Contains(t, results[920].Message, "Error:9999")
	assert.Len(t, f.carrier.Submitted(), 1, "no retry of the carrier call")
	assert.Equal(t, 1, f.metrics.storeFailures)

	p, _ := f.orders.Package(98)
	assert.Empty(t, p.PackageNumber)
	info, err := f.status.Get(context.Background(), 920)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestRegisterShipments_StatusFailureKeepsSuccess(t *testing.T) {
	f := newFixture(t, func(_ *shipment.Config, deps *shipment.Deps) {
		deps.Status = failingStatusStore{memory.NewStatusStore()}
	})
	f.addOrder(930, shipper.OrderPackage{ID: 99})

	results, err := f.service.RegisterShipments(context.Background(), []int{930})

	require.NoError(t, err)
	assert.True(t, results[930].Success)
	assert.Empty(t, f.publisher.Events(), "no event without a status record")

	p, _ := f.orders.Package(99)
	assert.NotEmpty(t, p.PackageNumber)
}

func TestRegisterShipments_PublishFailureIsLoggedOnly(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	f.addOrder(940, shipper.OrderPackage{ID: 100})

	results, err := f.service.RegisterShipments(context.Background(), []int{940})

	require.NoError(t, err)
	assert.True(t, results[940].Success)
	info, err := f.status.Get(context.Background(), 940)
	require.NoError(t, err)
	assert.NotNil(t, info)
}

func TestRegisterShipments_DuplicateIDsProcessedOnce(t *testing.T) {
	f := newFixture(t)
	f.addOrder(950, shipper.OrderPackage{ID: 101})

	results, err := f.service.RegisterShipments(context.Background(), []int{950, 950})

	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Len(t, f.carrier.Submitted(), 1)
}

func TestDeleteShipments(t *testing.T) {
	f := newFixture(t)
	f.addOrder(501, shipper.OrderPackage{ID: 11})
	_, err := f.service.RegisterShipments(context.Background(), []int{501})
	require.NoError(t, err)

	results, err := f.service.DeleteShipments(context.Background(), []int{501})

	require.NoError(t, err)
	assert.True(t, results[501].Success)
	assert.Equal(t, "Success - shipment registration reset", results[501].Message)
	assert.Len(t, f.carrier.Submitted(), 1, "carrier is not contacted on delete")

	info, err := f.status.Get(context.Background(), 501)
	require.NoError(t, err)
	assert.Nil(t, info)

	evts := f.publisher.Events()
	require.Len(t, evts, 2)
	assert.Equal(t, events.TypeShipmentReset, evts[1].Type)

	// an order can be registered again after a reset
	results, err = f.service.RegisterShipments(context.Background(), []int{501})
	require.NoError(t, err)
	assert.True(t, results[501].Success)
}

func TestDeleteShipments_ResetFailure(t *testing.T) {
	f := newFixture(t, func(_ *shipment.Config, deps *shipment.Deps) {
		deps.Status = failingStatusStore{memory.NewStatusStore()}
	})

	results, err := f.service.DeleteShipments(context.Background(), []int{1, 2})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Message, "status store down")
}

func TestDeleteShipments_NoOrderIDs(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.DeleteShipments(context.Background(), []int{})
	assert.True(t, errors.Is(err, shipper.ErrNoOrderIDs))
}
