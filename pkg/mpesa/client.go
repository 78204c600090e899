package mpesa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

var (
	ErrTokenAcquisition = errors.New("token acquisition failed")
	ErrPushFailed       = errors.New("stk push failed")
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"
)

// Client talks to the Daraja sandbox/production API. Tokens are acquired
// fresh for every push; nothing is cached so credential rotation takes
// effect immediately.
type Client struct {
	http            *fasthttp.Client
	baseURL         string
	callbackBaseURL string
	timeout         time.Duration
}

func NewClient(baseURL, callbackBaseURL string, timeout time.Duration) *Client {
	return &Client{
		http: &fasthttp.Client{
			MaxConnsPerHost:     100,
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxConnWaitTimeout:  timeout,
		},
		baseURL:         baseURL,
		callbackBaseURL: callbackBaseURL,
		timeout:         timeout,
	}
}

// AccessToken exchanges consumer credentials for a bearer token via HTTP
// Basic auth on the OAuth endpoint.
func (c *Client) AccessToken(ctx context.Context, consumerKey, consumerSecret string) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	auth := base64.StdEncoding.EncodeToString([]byte(consumerKey + ":" + consumerSecret))

	req.Header.SetMethod(http.MethodGet)
	req.SetRequestURI(c.baseURL + tokenPath)
	req.Header.Set("Authorization", "Basic "+auth)

	if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenAcquisition, err)
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode >= 300 {
		return "", fmt.Errorf("%w: gateway returned status %d", ErrTokenAcquisition, statusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token response", ErrTokenAcquisition)
	}

	return body.AccessToken, nil
}

type stkPushPayload struct {
	BusinessShortCode string          `json:"BusinessShortCode"`
	Password          string          `json:"Password"`
	Timestamp         string          `json:"Timestamp"`
	TransactionType   string          `json:"TransactionType"`
	Amount            decimal.Decimal `json:"Amount"`
	PartyA            string          `json:"PartyA"`
	PartyB            string          `json:"PartyB"`
	PhoneNumber       string          `json:"PhoneNumber"`
	CallBackURL       string          `json:"CallBackURL"`
	AccountReference  string          `json:"AccountReference"`
	TransactionDesc   string          `json:"TransactionDesc"`
}

// StkPush sends a payment prompt request for the given tenant and returns the
// gateway's synchronous acknowledgement body verbatim. The acknowledgement
// only means the request was accepted for asynchronous processing.
func (c *Client) StkPush(ctx context.Context, token string, shortcode, passkey, phone string, amount decimal.Decimal) ([]byte, error) {
	timestamp := darajaTimestamp(time.Now().UTC())

	payload := stkPushPayload{
		BusinessShortCode: shortcode,
		Password:          stkPassword(shortcode, passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            shortcode,
		PhoneNumber:       phone,
		CallBackURL:       fmt.Sprintf("%s/api/mpesa/callback/%s", c.callbackBaseURL, shortcode),
		AccountReference:  "SautiPesa",
		TransactionDesc:   "Payment",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPushFailed, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(http.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetRequestURI(c.baseURL + pushPath)
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(body)

	if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPushFailed, err)
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrPushFailed, statusCode)
	}

	ack := make([]byte, len(resp.Body()))
	copy(ack, resp.Body())
	return ack, nil
}

// darajaTimestamp renders t as YYYYMMDDHHMMSS, the format the password
// derivation and the push payload share.
func darajaTimestamp(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

func stkPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}
