package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Tenant is one registered business, keyed by its M-Pesa shortcode.
type Tenant struct {
	BusinessName   string `json:"business_name"`
	Shortcode      string `json:"shortcode"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
	Passkey        string `json:"passkey"`
}

// Credentials is the subset of tenant data needed to talk to Daraja.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
}

type TxStatus string

const (
	StatusSuccess TxStatus = "SUCCESS"
)

// Transaction is a completed payment as recorded in the ledger.
// Amount travels as decimal end to end so "100" never becomes 99.999...
type Transaction struct {
	BusinessShortcode string          `json:"business_shortcode"`
	Receipt           string          `json:"receipt"`
	Amount            decimal.Decimal `json:"amount"`
	Phone             string          `json:"phone"`
	Status            TxStatus        `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

// PushRequest lives only for the duration of one STK push call.
type PushRequest struct {
	Phone     string          `json:"phone"`
	Amount    decimal.Decimal `json:"amount"`
	Shortcode string          `json:"shortcode"`
}

// StkCallbackEnvelope is the body Daraja posts to the per-tenant callback URL.
type StkCallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem values arrive as numbers for Amount and sometimes for
// PhoneNumber, as strings for the receipt. Normalization happens at parse.
type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// JoinMessage is the only client-to-server frame on the live socket.
type JoinMessage struct {
	Type      string `json:"type"`
	Shortcode string `json:"shortcode"`
}

const JoinRoomType = "join_room"

// PaymentNotice is the payload fanned out to a tenant's room and returned
// by the polling surface.
type PaymentNotice struct {
	Amount  decimal.Decimal `json:"amount"`
	Phone   string          `json:"phone"`
	Receipt string          `json:"receipt"`
}

// Notification is the server-to-client frame for a completed payment.
type Notification struct {
	Type string        `json:"type"`
	Data PaymentNotice `json:"data"`
}

const PaymentReceivedType = "payment_received"
