package network

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNewJitoClientClampsTip(t *testing.T) {
	j := NewJitoClient("http://localhost", 1)
	assert.Equal(t, uint64(MinTipLamports), j.TipLamports())

	j = NewJitoClient("http://localhost", 50_000)
	assert.Equal(t, uint64(50_000), j.TipLamports())
}

func TestTipAccountIsKnown(t *testing.T) {
	j := NewJitoClient("http://localhost", MinTipLamports)
	for i := 0; i < 20; i++ {
		picked := j.TipAccount()
		found := false
		for _, acct := range tipAccounts {
			if acct.Equals(picked) {
				found = true
				break
			}
		}
		assert.True(t, found, "tip account %s not in the rotation", picked)
	}
}

func signedTestTx(t *testing.T) *solana.Transaction {
	t.Helper()
	payer := solana.NewWallet()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1, payer.PublicKey(), payer.PublicKey()).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func TestSendBundleEncodesRequest(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"BundleID"}`))
	}))
	defer srv.Close()

	j := NewJitoClient(srv.URL, MinTipLamports)
	require.NoError(t, j.SendBundle(context.Background(), signedTestTx(t)))

	assert.Equal(t, "sendBundle", gjson.GetBytes(gotBody, "method").String())
	assert.Equal(t, "base64", gjson.GetBytes(gotBody, "params.1.encoding").String())

	txs := gjson.GetBytes(gotBody, "params.0").Array()
	require.Len(t, txs, 1)
	_, err := base64.StdEncoding.DecodeString(txs[0].String())
	assert.NoError(t, err, "bundle payload must be valid base64")
}

func TestSendBundleSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"bundle dropped"}}`))
	}))
	defer srv.Close()

	j := NewJitoClient(srv.URL, MinTipLamports)
	err := j.SendBundle(context.Background(), signedTestTx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundle dropped")
}

func TestSendBundleSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	j := NewJitoClient(srv.URL, MinTipLamports)
	err := j.SendBundle(context.Background(), signedTestTx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
