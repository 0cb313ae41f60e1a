package network

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rs/zerolog/log"
)

// ErrAccountNotFound is returned when an account does not exist on chain.
var ErrAccountNotFound = errors.New("account not found")

const (
	submitRetries    = 5
	submitRetryDelay = 300 * time.Millisecond
	reconnectDelay   = 5 * time.Second
)

// Client wraps the Solana JSON-RPC and websocket endpoints together with
// the Jito block-engine path used for latency-sensitive submissions.
type Client struct {
	rpc   *rpc.Client
	wsURL string
	jito  *JitoClient
}

// New creates a network client. The websocket connection is established
// lazily per subscription so a flaky WS endpoint cannot block startup.
func New(rpcURL, wsURL string, jito *JitoClient) *Client {
	return &Client{
		rpc:   rpc.New(rpcURL),
		wsURL: wsURL,
		jito:  jito,
	}
}

// RPC exposes the underlying JSON-RPC client.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// Balance returns the lamport balance of an account. Failures degrade to
// zero so balance checks never abort a trading cycle.
func (c *Client) Balance(ctx context.Context, owner solana.PublicKey) uint64 {
	out, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		log.Warn().Err(err).Str("account", owner.String()).Msg("balance lookup failed, treating as 0")
		return 0
	}
	return out.Value
}

// TokenBalance returns the raw token amount held in a token account.
func (c *Client) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("token balance %s: %w", account, err)
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// AccountData fetches the raw data of an account.
func (c *Client) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	out, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("account info %s: %w", account, err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	return out.Value.Data.GetBinary(), nil
}

// ProgramAccounts runs a filtered getProgramAccounts scan.
func (c *Client) ProgramAccounts(ctx context.Context, program solana.PublicKey, filters []rpc.RPCFilter) (rpc.GetProgramAccountsResult, error) {
	out, err := c.rpc.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Filters:    filters,
	})
	if err != nil {
		return nil, fmt.Errorf("program accounts %s: %w", program, err)
	}
	return out, nil
}

// LatestBlockhash fetches a recent blockhash for transaction assembly.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// SubmitFast sends a signed transaction through the Jito block engine,
// falling back to plain RPC only when the bundle handoff fails. A
// successful handoff returns the transaction's own signature without
// waiting for any inclusion ack; the RPC leg must not run after it,
// since a duplicate submission error there would mask a landed trade.
func (c *Client) SubmitFast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if c.jito != nil && len(tx.Signatures) > 0 {
		if err := c.jito.SendBundle(ctx, tx); err != nil {
			log.Warn().Err(err).Msg("jito bundle submit failed, falling back to RPC")
		} else {
			return tx.Signatures[0], nil
		}
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// SubmitWithRetry retries SubmitFast with a doubling backoff. Used for
// exits, where giving up on a transient RPC error would strand a position.
func (c *Client) SubmitWithRetry(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var lastErr error
	delay := submitRetryDelay

	for attempt := 1; attempt <= submitRetries; attempt++ {
		sig, err := c.SubmitFast(ctx, tx)
		if err == nil {
			return sig, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("submit failed")

		if attempt < submitRetries {
			select {
			case <-ctx.Done():
				return solana.Signature{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return solana.Signature{}, fmt.Errorf("submit after %d attempts: %w", submitRetries, lastErr)
}

// Transaction fetches a confirmed transaction with metadata.
func (c *Client) Transaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", sig, err)
	}
	return out, nil
}

// LogEvent is one transaction's log output delivered by a program
// subscription.
type LogEvent struct {
	Signature solana.Signature
	Logs      []string
}

// SubscribeProgramLogs streams log events mentioning a program until the
// context is cancelled, reconnecting on any websocket failure.
func (c *Client) SubscribeProgramLogs(ctx context.Context, program solana.PublicKey, handler func(LogEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.streamLogs(ctx, program, handler); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("program", program.String()).Msg("log stream dropped, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}
}

func (c *Client) streamLogs(ctx context.Context, program solana.PublicKey, handler func(LogEvent)) error {
	wsClient, err := ws.Connect(ctx, c.wsURL)
	if err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}
	defer wsClient.Close()

	sub, err := wsClient.LogsSubscribeMentions(program, rpc.CommitmentProcessed)
	if err != nil {
		return fmt.Errorf("logs subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	log.Info().Str("program", program.String()).Msg("📡 subscribed to program logs")

	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			return fmt.Errorf("logs recv: %w", err)
		}
		if msg.Value.Err != nil {
			continue
		}
		handler(LogEvent{Signature: msg.Value.Signature, Logs: msg.Value.Logs})
	}
}
