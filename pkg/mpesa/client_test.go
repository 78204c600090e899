package mpesa

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func TestDarajaTimestamp_Format(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 42, 0, time.UTC)

	if got := darajaTimestamp(ts); got != "20240307090542" {
		t.Fatalf("expected 20240307090542, got %s", got)
	}
}

func TestDarajaTimestamp_ConvertsToUTC(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	ts := time.Date(2024, 3, 7, 12, 0, 0, 0, nairobi)

	if got := darajaTimestamp(ts); got != "20240307090000" {
		t.Fatalf("expected UTC timestamp 20240307090000, got %s", got)
	}
}

func TestStkPassword_Derivation(t *testing.T) {
	got := stkPassword("174379", "passkey", "20240307090542")
	want := base64.StdEncoding.EncodeToString([]byte("174379passkey20240307090542"))

	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestAccessToken_Success(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"access_token":"tok-1","expires_in":"3599"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "https://bridge.example.com", 2*time.Second)
	token, err := c.AccessToken(context.Background(), "key", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if token != "tok-1" {
		t.Errorf("expected token tok-1, got %s", token)
	}
	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
	if gotAuth != expectedAuth {
		t.Errorf("expected %s, got %s", expectedAuth, gotAuth)
	}
}

func TestAccessToken_GatewayError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "https://bridge.example.com", 2*time.Second)
	if _, err := c.AccessToken(context.Background(), "key", "bad"); !errors.Is(err, ErrTokenAcquisition) {
		t.Fatalf("expected ErrTokenAcquisition, got %v", err)
	}
}

func TestAccessToken_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "https://bridge.example.com", 2*time.Second)
	if _, err := c.AccessToken(context.Background(), "key", "secret"); !errors.Is(err, ErrTokenAcquisition) {
		t.Fatalf("expected ErrTokenAcquisition, got %v", err)
	}
}

func TestStkPush_PayloadAndAck(t *testing.T) {
	var gotAuth string
	var gotPayload stkPushPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("failed to decode push payload: %v", err)
		}
		w.Write([]byte(`{"ResponseCode":"0","CheckoutRequestID":"ws_CO_1"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "https://bridge.example.com", 2*time.Second)
	ack, err := c.StkPush(context.Background(), "tok-1", "174379", "passkey", "254712345678", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(ack) != `{"ResponseCode":"0","CheckoutRequestID":"ws_CO_1"}` {
		t.Errorf("ack must be forwarded verbatim, got %s", ack)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("expected Bearer tok-1, got %s", gotAuth)
	}
	if gotPayload.BusinessShortCode != "174379" {
		t.Errorf("expected shortcode 174379, got %s", gotPayload.BusinessShortCode)
	}
	if gotPayload.PartyA != "254712345678" || gotPayload.PhoneNumber != "254712345678" {
		t.Errorf("payer phone must be both PartyA and PhoneNumber")
	}
	if gotPayload.PartyB != "174379" {
		t.Errorf("expected PartyB = shortcode, got %s", gotPayload.PartyB)
	}
	if gotPayload.TransactionType != "CustomerPayBillOnline" {
		t.Errorf("unexpected transaction type %s", gotPayload.TransactionType)
	}
	if gotPayload.CallBackURL != "https://bridge.example.com/api/mpesa/callback/174379" {
		t.Errorf("callback URL must be templated with the shortcode, got %s", gotPayload.CallBackURL)
	}
	if gotPayload.Password != stkPassword("174379", "passkey", gotPayload.Timestamp) {
		t.Errorf("password must derive from shortcode+passkey+timestamp")
	}
	if !gotPayload.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected amount 100, got %s", gotPayload.Amount.String())
	}
}

func TestStkPush_GatewayError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "https://bridge.example.com", 2*time.Second)
	_, err := c.StkPush(context.Background(), "tok-1", "174379", "passkey", "254712345678", decimal.NewFromInt(100))
	if !errors.Is(err, ErrPushFailed) {
		t.Fatalf("expected ErrPushFailed, got %v", err)
	}
}

func TestStkPush_NetworkError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "https://bridge.example.com", 500*time.Millisecond)
	_, err := c.StkPush(context.Background(), "tok-1", "174379", "passkey", "254712345678", decimal.NewFromInt(100))
	if !errors.Is(err, ErrPushFailed) {
		t.Fatalf("expected ErrPushFailed, got %v", err)
	}
}
