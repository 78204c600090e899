package mpesa

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/brianaseka61-max/sautipesa-bridge/pkg/models"
)

var ErrMalformedCallback = errors.New("malformed callback")

const (
	metaAmount  = "Amount"
	metaReceipt = "MpesaReceiptNumber"
	metaPhone   = "PhoneNumber"
)

// ExtractPayment pulls Amount, MpesaReceiptNumber and PhoneNumber out of a
// successful callback's metadata list. The caller is expected to have checked
// ResultCode == 0 already; a missing metadata block or field is
// ErrMalformedCallback.
func ExtractPayment(cb models.StkCallback) (models.PaymentNotice, error) {
	var notice models.PaymentNotice

	if cb.CallbackMetadata == nil {
		return notice, fmt.Errorf("%w: no metadata", ErrMalformedCallback)
	}

	items := make(map[string]interface{}, len(cb.CallbackMetadata.Item))
	for _, item := range cb.CallbackMetadata.Item {
		items[item.Name] = item.Value
	}

	amountRaw, ok := items[metaAmount]
	if !ok {
		return notice, fmt.Errorf("%w: missing %s", ErrMalformedCallback, metaAmount)
	}
	amount, err := decimalValue(amountRaw)
	if err != nil {
		return notice, fmt.Errorf("%w: bad %s: %v", ErrMalformedCallback, metaAmount, err)
	}

	receiptRaw, ok := items[metaReceipt]
	if !ok {
		return notice, fmt.Errorf("%w: missing %s", ErrMalformedCallback, metaReceipt)
	}
	receipt := stringValue(receiptRaw)
	if receipt == "" {
		return notice, fmt.Errorf("%w: empty %s", ErrMalformedCallback, metaReceipt)
	}

	phoneRaw, ok := items[metaPhone]
	if !ok {
		return notice, fmt.Errorf("%w: missing %s", ErrMalformedCallback, metaPhone)
	}
	phone := stringValue(phoneRaw)
	if phone == "" {
		return notice, fmt.Errorf("%w: empty %s", ErrMalformedCallback, metaPhone)
	}

	notice.Amount = amount
	notice.Receipt = receipt
	notice.Phone = phone
	return notice, nil
}

// Daraja sends Amount as a JSON number and PhoneNumber as either a number or
// a string depending on environment; both encodings are accepted.
func decimalValue(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		return decimal.NewFromString(val)
	default:
		return decimal.Zero, fmt.Errorf("unexpected type %T", v)
	}
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
