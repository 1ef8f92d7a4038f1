package cargoconnect_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cargoconnect/pkg/cargoconnect"
)

func newHTTPClient(t *testing.T, handler http.HandlerFunc) *cargoconnect.HTTPAPIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return cargoconnect.NewHTTPAPIClient(cargoconnect.HTTPAPIClientConfig{
		BaseURL:  srv.URL + "/",
		APIToken: "secret-token",
		Timeout:  time.Second,
	})
}

func TestHTTPAPIClient_SubmitOrder(t *testing.T) {
	var got cargoconnect.SubmitOrderRequest
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/submit-order", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"label":"JVBERg==","tracking":["DE1","DE2"]}`))
	})

	req, err := cargoconnect.FormatShipmentRequest(sampleRequest())
	require.NoError(t, err)

	resp, err := client.SubmitOrder(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, resp.Label)
	assert.Equal(t, "JVBERg==", *resp.Label)
	assert.Equal(t, []string{"DE1", "DE2"}, resp.Tracking)
	assert.Nil(t, resp.Error)
	assert.Equal(t, 501, got.OrderID)
	assert.Equal(t, "2026-10-14", got.PickupDate)
	assert.Len(t, got.Packages, 2)
}

func TestHTTPAPIClient_SubmitOrder_NullDimensions(t *testing.T) {
	var raw map[string]interface{}
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"label":"JVBERg==","tracking":["DE1","DE2"]}`))
	})

	req, err := cargoconnect.FormatShipmentRequest(sampleRequest())
	require.NoError(t, err)
	_, err = client.SubmitOrder(context.Background(), req)
	require.NoError(t, err)

	packages := raw["packages"].([]interface{})
	second := packages[1].(map[string]interface{})
	assert.Contains(t, second, "length")
	assert.Nil(t, second["length"])
	assert.Nil(t, second["width"])
	assert.Nil(t, second["height"])
	assert.Equal(t, "Paket", second["package"])

	sender := raw["sender"].(map[string]interface{})
	assert.Nil(t, sender["email"])
	assert.Equal(t, "plentymarkets GmbH", sender["company"])
}

func TestHTTPAPIClient_SubmitOrder_BusinessErrorIsResponse(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"invalid address"}`))
	})

	resp, err := client.SubmitOrder(context.Background(), &cargoconnect.SubmitOrderRequest{OrderID: 1})

	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid address", *resp.Error)
	assert.Nil(t, resp.Label)
}

func TestHTTPAPIClient_Non2xx(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	})

	_, err := client.SubmitOrder(context.Background(), &cargoconnect.SubmitOrderRequest{OrderID: 1})

	var apiErr *cargoconnect.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "HTTP_502", apiErr.Code)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestHTTPAPIClient_Non2xxPlainBody(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.RetrieveLabelPage(context.Background(), &cargoconnect.LabelPageRequest{Base64: "x", Page: 1})

	var apiErr *cargoconnect.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Service Unavailable", apiErr.Message)
}

func TestHTTPAPIClient_MalformedJSON(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	})

	_, err := client.SubmitOrder(context.Background(), &cargoconnect.SubmitOrderRequest{OrderID: 1})

	var apiErr *cargoconnect.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "MALFORMED_JSON", apiErr.Code)
}

func TestHTTPAPIClient_RetrieveLabelPage(t *testing.T) {
	client := newHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/label-page", r.URL.Path)
		var req cargoconnect.LabelPageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ZG9j", req.Base64)
		assert.Equal(t, 3, req.Page)
		_, _ = w.Write([]byte(`{"label":"cGFnZQ=="}`))
	})

	resp, err := client.RetrieveLabelPage(context.Background(), &cargoconnect.LabelPageRequest{Base64: "ZG9j", Page: 3})

	require.NoError(t, err)
	assert.Equal(t, "cGFnZQ==", resp.Label)
}

func TestHTTPAPIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := cargoconnect.NewHTTPAPIClient(cargoconnect.HTTPAPIClientConfig{
		BaseURL:  srv.URL,
		APIToken: "t",
		Timeout:  20 * time.Millisecond,
	})

	_, err := client.SubmitOrder(context.Background(), &cargoconnect.SubmitOrderRequest{OrderID: 1})

	var apiErr *cargoconnect.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "TIMEOUT", apiErr.Code)
	assert.Zero(t, apiErr.StatusCode)
}
