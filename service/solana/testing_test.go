package solana

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: tests configure what it should return, not
// verify call sequences.
type mockRPCClient struct {
	getSignatures  func(ctx context.Context, address solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	getTransaction func(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

func (m *mockRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	return m.getSignatures(ctx, address, opts)
}

func (m *mockRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return m.getTransaction(ctx, signature, opts)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testSignature builds a distinct, deterministic signature from n.
func testSignature(n int) solana.Signature {
	var sig solana.Signature
	binary.LittleEndian.PutUint64(sig[:8], uint64(n)+1)
	return sig
}

func testWallet() solana.PublicKey {
	return solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
}
