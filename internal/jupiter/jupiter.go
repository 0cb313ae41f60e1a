// Package jupiter is the aggregator fallback execution path. It covers
// tokens whose deepest market is not an AMM v4 pool.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/web3guy0/solsniper/internal/network"
	"github.com/web3guy0/solsniper/internal/swap"
)

var wsolMint = solana.SolMint

// Client talks to the Jupiter v6 quote and swap API.
type Client struct {
	baseURL    string
	net        *network.Client
	httpClient *http.Client
}

// New creates a Jupiter client.
func New(baseURL string, net *network.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		net:        net,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Name() string { return "jupiter" }

// quote fetches a route. The raw body is kept because /swap wants the
// whole quote response echoed back.
func (c *Client) quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps int) (json.RawMessage, uint64, error) {
	url := fmt.Sprintf("%s/quote?inputMint=%s&outputMint=%s&amount=%d&slippageBps=%d",
		c.baseURL, inputMint, outputMint, amount, slippageBps)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build quote request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("jupiter quote: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("jupiter quote: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("jupiter quote: status %d: %s", resp.StatusCode, body)
	}

	outAmount := gjson.GetBytes(body, "outAmount").Uint()
	if outAmount == 0 {
		return nil, 0, fmt.Errorf("jupiter quote: no route for %s -> %s", inputMint, outputMint)
	}
	return body, outAmount, nil
}

// swapTransaction exchanges a quote for a signable serialized
// transaction.
func (c *Client) swapTransaction(ctx context.Context, quote json.RawMessage, user solana.PublicKey) (*solana.Transaction, error) {
	payload, err := json.Marshal(map[string]any{
		"quoteResponse":    quote,
		"userPublicKey":    user.String(),
		"wrapAndUnwrapSol": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter swap: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jupiter swap: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter swap: status %d: %s", resp.StatusCode, body)
	}

	encoded := gjson.GetBytes(body, "swapTransaction").String()
	if encoded == "" {
		return nil, fmt.Errorf("jupiter swap: empty transaction in response")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("jupiter swap: decode transaction: %w", err)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("jupiter swap: parse transaction: %w", err)
	}
	return tx, nil
}

func (c *Client) execute(ctx context.Context, signer solana.PrivateKey, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps int) (*swap.Result, error) {
	quote, outAmount, err := c.quote(ctx, inputMint, outputMint, amount, slippageBps)
	if err != nil {
		return nil, err
	}

	tx, err := c.swapTransaction(ctx, quote, signer.PublicKey())
	if err != nil {
		return nil, err
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign jupiter swap: %w", err)
	}

	sig, err := c.net.SubmitWithRetry(ctx, tx)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("in", inputMint.String()).
		Str("out", outputMint.String()).
		Str("tx", sig.String()).
		Msg("🪐 jupiter swap submitted")
	return &swap.Result{Provider: c.Name(), Signature: sig, EstimatedOut: outAmount}, nil
}

// Buy swaps lamports into the token via the aggregator.
func (c *Client) Buy(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, lamports uint64, slippageBps int) (*swap.Result, error) {
	return c.execute(ctx, signer, wsolMint, mint, lamports, slippageBps)
}

// Sell swaps the token back into SOL via the aggregator.
func (c *Client) Sell(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, tokenAmount uint64, slippageBps int) (*swap.Result, error) {
	return c.execute(ctx, signer, mint, wsolMint, tokenAmount, slippageBps)
}
