package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tournevent/cargoconnect/pkg/shipper"
)

// ResolveOrderIDs extracts order ids from a request body. Accepted shapes are
// a single id, an id array, or an object carrying either under "orderIds"
// (or "orderId"). Ids may be numbers or numeric strings. A body yielding no
// positive id returns ErrNoOrderIDs.
func ResolveOrderIDs(body []byte) ([]int, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, shipper.ErrNoOrderIDs
	}

	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", shipper.ErrNoOrderIDs)
	}

	if obj, ok := raw.(map[string]interface{}); ok {
		v, found := obj["orderIds"]
		if !found {
			v = obj["orderId"]
		}
		raw = v
	}

	var ids []int
	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			if id, ok := toOrderID(item); ok {
				ids = append(ids, id)
			}
		}
	default:
		if id, ok := toOrderID(v); ok {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return nil, shipper.ErrNoOrderIDs
	}
	return ids, nil
}

func toOrderID(v interface{}) (int, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
