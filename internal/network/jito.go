package network

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/tidwall/gjson"
)

// MinTipLamports is the smallest tip the block engine accepts.
const MinTipLamports = 10_000

// tipAccounts are the block engine's rotating tip destinations. One is
// picked at random per bundle to spread load across leaders.
var tipAccounts = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
	solana.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
}

// JitoClient submits signed transactions as single-transaction bundles to
// a Jito block engine over JSON-RPC.
type JitoClient struct {
	url        string
	tip        uint64
	httpClient *http.Client
}

// NewJitoClient creates a bundle client. Tips below the engine minimum
// are raised to it.
func NewJitoClient(url string, tipLamports uint64) *JitoClient {
	if tipLamports < MinTipLamports {
		tipLamports = MinTipLamports
	}
	return &JitoClient{
		url:        url,
		tip:        tipLamports,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// TipLamports returns the configured tip per bundle.
func (j *JitoClient) TipLamports() uint64 {
	return j.tip
}

// TipAccount returns a random tip destination for the next bundle.
func (j *JitoClient) TipAccount() solana.PublicKey {
	return tipAccounts[rand.Intn(len(tipAccounts))]
}

// SendBundle submits the transactions as one bundle. The engine gives no
// inclusion guarantee, so only transport and RPC-level errors are
// surfaced; callers treat the whole path as fire-and-forget.
func (j *JitoClient) SendBundle(ctx context.Context, txs ...*solana.Transaction) error {
	encoded := make([]string, 0, len(txs))
	for _, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return fmt.Errorf("marshal bundle tx: %w", err)
		}
		encoded = append(encoded, base64.StdEncoding.EncodeToString(raw))
	}

	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "sendBundle",
		"params":  []any{encoded, map[string]string{"encoding": "base64"}},
	})
	if err != nil {
		return fmt.Errorf("marshal bundle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("bundle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bundle submit: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bundle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bundle submit status %d: %s", resp.StatusCode, body)
	}
	if rpcErr := gjson.GetBytes(body, "error.message"); rpcErr.Exists() {
		return fmt.Errorf("bundle rejected: %s", rpcErr.String())
	}
	return nil
}
