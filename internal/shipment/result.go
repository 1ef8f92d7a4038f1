package shipment

import (
	"errors"
	"fmt"

	"github.com/tournevent/cargoconnect/pkg/shipper"
)

const (
	msgLabelCreated = "Success:" + shipper.CodeLabelCreated + " - Label created"
	msgReset        = "Success - shipment registration reset"
)

var codeText = map[string]string{
	shipper.CodeMissingAPIToken:   "API Key missing or invalid",
	shipper.CodeMissingAPIURL:     "API URL missing or invalid",
	shipper.CodeNoPackages:        "Add at least 1 Package before submission",
	shipper.CodeOrderValidation:   "Order validation failed",
	shipper.CodeInvalidPickup:     "Missing or invalid pickup address",
	shipper.CodeInvalidDelivery:   "Missing or invalid delivery address",
	shipper.CodeAlreadyRegistered: "Shipment already registered",
	shipper.CodeOther:             "Other issue, please handle inside Connect",
}

// failureMessage renders err as "Error:<code> - <text>[: <detail>]".
func failureMessage(err error) string {
	code := shipper.CodeOf(err)
	text, ok := codeText[code]
	if !ok {
		code, text = shipper.CodeOther, codeText[shipper.CodeOther]
	}

	msg := fmt.Sprintf("Error:%s - %s", code, text)
	switch code {
	case shipper.CodeNoPackages, shipper.CodeAlreadyRegistered:
		return msg
	}
	if detail := errorDetail(err); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func errorDetail(err error) string {
	var shipperErr *shipper.ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Message
	}
	return err.Error()
}

func successResult(packages []shipper.PackageLabel) *shipper.ShipmentResult {
	return &shipper.ShipmentResult{
		Success:  true,
		Message:  msgLabelCreated,
		Packages: packages,
	}
}

func failedResult(err error) *shipper.ShipmentResult {
	return &shipper.ShipmentResult{
		Success:  false,
		Message:  failureMessage(err),
		Packages: []shipper.PackageLabel{},
	}
}
