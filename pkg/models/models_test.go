package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func TestNotification_AmountMarshalsAsNumber(t *testing.T) {
	n := Notification{
		Type: PaymentReceivedType,
		Data: PaymentNotice{
			Amount:  decimal.NewFromInt(100),
			Phone:   "254712345678",
			Receipt: "ABC123",
		},
	}

	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Clients parse amount as a number, not a quoted decimal string.
	if !strings.Contains(string(raw), `"amount":100`) {
		t.Errorf("expected unquoted amount, got %s", raw)
	}
	if !strings.Contains(string(raw), `"type":"payment_received"`) {
		t.Errorf("expected payment_received type, got %s", raw)
	}
}

func TestStkCallbackEnvelope_DecodesGatewayShape(t *testing.T) {
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":1.00},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254708374149}]}}}}`

	var env StkCallbackEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("failed to decode Daraja callback: %v", err)
	}

	cb := env.Body.StkCallback
	if cb.ResultCode != 0 {
		t.Errorf("expected ResultCode 0, got %d", cb.ResultCode)
	}
	if cb.CallbackMetadata == nil || len(cb.CallbackMetadata.Item) != 4 {
		t.Fatalf("expected 4 metadata items, got %+v", cb.CallbackMetadata)
	}
	if cb.CallbackMetadata.Item[1].Name != "MpesaReceiptNumber" {
		t.Errorf("unexpected item order: %+v", cb.CallbackMetadata.Item[1])
	}
}
