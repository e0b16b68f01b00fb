package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// WompiAdapter drives Wompi's hosted Web Checkout (PSE, card, Nequi, bank
// transfer). Initiate builds a signed redirect URL; Verify looks the
// transaction up with the private key after the redirect/webhook comes back.
type WompiAdapter struct {
	PublicKey       string
	PrivateKey      string
	IntegritySecret string
	RedirectURL     string
	IsProduction    bool
	httpClient      *http.Client
}

func NewWompiAdapter(publicKey, privateKey, integritySecret, redirectURL string, isProd bool) *WompiAdapter {
	return &WompiAdapter{
		PublicKey:       publicKey,
		PrivateKey:      privateKey,
		IntegritySecret: integritySecret,
		RedirectURL:     redirectURL,
		IsProduction:    isProd,
		httpClient:      http.DefaultClient,
	}
}

func (w *WompiAdapter) apiURL() string {
	if w.IsProduction {
		return "https://production.wompi.co/v1"
	}
	return "https://sandbox.wompi.co/v1"
}

// integritySignature is sha256(reference + amount + currency + secret), hex
// encoded, exactly as the checkout widget expects.
func (w *WompiAdapter) integritySignature(reference string, amountCents int64, currency string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%d%s%s", reference, amountCents, currency, w.IntegritySecret)))
	return hex.EncodeToString(sum[:])
}

func (w *WompiAdapter) InitiatePayment(_ context.Context, req PaymentRequest) (PaymentResponse, error) {
	if req.AmountCents <= 0 {
		return PaymentResponse{}, fmt.Errorf("wompi initiate: non-positive amount")
	}
	currency := req.Currency
	if currency == "" {
		currency = "COP"
	}

	q := url.Values{}
	q.Set("public-key", w.PublicKey)
	q.Set("currency", currency)
	q.Set("amount-in-cents", fmt.Sprintf("%d", req.AmountCents))
	q.Set("reference", req.Reference)
	q.Set("signature:integrity", w.integritySignature(req.Reference, req.AmountCents, currency))
	if w.RedirectURL != "" {
		q.Set("redirect-url", w.RedirectURL)
	}
	if req.CustomerEmail != "" {
		q.Set("customer-data:email", req.CustomerEmail)
	}
	if req.CustomerName != "" {
		q.Set("customer-data:full-name", req.CustomerName)
	}

	return PaymentResponse{
		PaymentURL: "https://checkout.wompi.co/p/?" + q.Encode(),
		Data:       map[string]string{"reference": req.Reference},
	}, nil
}

func (w *WompiAdapter) VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error) {
	txID := req.Data["id"]
	if txID == "" {
		txID = req.Data["transaction_id"]
	}

	var lookup string
	if txID != "" {
		lookup = fmt.Sprintf("%s/transactions/%s", w.apiURL(), txID)
	} else {
		lookup = fmt.Sprintf("%s/transactions?reference=%s", w.apiURL(), url.QueryEscape(req.Reference))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, lookup, nil)
	if err != nil {
		return PaymentVerifyResponse{}, fmt.Errorf("wompi lookup request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+w.PrivateKey)

	resp, err := w.httpClient.Do(httpReq)
	if err != nil {
		return PaymentVerifyResponse{}, fmt.Errorf("wompi lookup: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return PaymentVerifyResponse{}, fmt.Errorf("wompi lookup failed: http=%d body=%s", resp.StatusCode, string(raw))
	}

	// Single-transaction and by-reference lookups wrap the payload
	// differently; normalize both.
	var single struct {
		Data struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &single); err != nil {
		return PaymentVerifyResponse{}, fmt.Errorf("wompi lookup decode: %w", err)
	}
	tx := single.Data
	if tx.ID == "" {
		var many struct {
			Data []struct {
				ID        string `json:"id"`
				Status    string `json:"status"`
				Reference string `json:"reference"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &many); err != nil || len(many.Data) == 0 {
			return PaymentVerifyResponse{Reference: req.Reference}, nil
		}
		tx.ID = many.Data[0].ID
		tx.Status = many.Data[0].Status
		tx.Reference = many.Data[0].Reference
	}

	if req.Reference != "" && tx.Reference != req.Reference {
		return PaymentVerifyResponse{Reference: tx.Reference}, fmt.Errorf("wompi verify: reference mismatch")
	}

	return PaymentVerifyResponse{
		Success:      tx.Status == "APPROVED",
		Reference:    tx.Reference,
		ProviderTxID: tx.ID,
	}, nil
}
