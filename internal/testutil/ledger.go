// Package testutil provides an in-memory ledger that executes the GIF
// program's instructions, for tests across packages.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-gif-portal/internal/anchor"
	"solana-gif-portal/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrLedgerDown is returned by every call while the fake is marked down
var ErrLedgerDown = errors.New("ledger unreachable")

// FakeLedger implements the portal's LedgerRPC against in-memory state.
// It verifies signatures and applies start_stuff_off, add_gif, upvote and
// send_sol the way the on-chain program does.
type FakeLedger struct {
	mu        sync.Mutex
	programID solana.PublicKey
	accounts  map[solana.PublicKey][]byte
	balances  map[solana.PublicKey]uint64
	blockhash solana.Hash
	down      bool
	sendErr   error
	sent      []*solana.Transaction
	calls     map[string]int
}

// NewFakeLedger creates a ledger hosting programID
func NewFakeLedger(programID solana.PublicKey) *FakeLedger {
	return &FakeLedger{
		programID: programID,
		accounts:  make(map[solana.PublicKey][]byte),
		balances:  make(map[solana.PublicKey]uint64),
		blockhash: solana.Hash(solana.NewWallet().PublicKey()),
		calls:     make(map[string]int),
	}
}

// SetDown makes every call fail with ErrLedgerDown
func (f *FakeLedger) SetDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

// FailSends makes SendTransaction return err until cleared with nil
func (f *FakeLedger) FailSends(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

// SetBalance sets the lamport balance of account
func (f *FakeLedger) SetBalance(account solana.PublicKey, lamports uint64) {
	f.mu.Lock()
	f.balances[account] = lamports
	f.mu.Unlock()
}

// SetList writes a BaseAccount holding acc under base
func (f *FakeLedger) SetList(base solana.PublicKey, acc models.ListAccount) error {
	data, err := anchor.EncodeBaseAccount(acc)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.accounts[base] = data
	f.mu.Unlock()
	return nil
}

// SetRawAccount stores arbitrary data under account
func (f *FakeLedger) SetRawAccount(account solana.PublicKey, data []byte) {
	f.mu.Lock()
	f.accounts[account] = data
	f.mu.Unlock()
}

// List decodes the BaseAccount stored under base
func (f *FakeLedger) List(base solana.PublicKey) (models.ListAccount, error) {
	f.mu.Lock()
	data, ok := f.accounts[base]
	f.mu.Unlock()
	if !ok {
		return models.ListAccount{}, models.ErrAccountNotFound
	}
	return anchor.DecodeBaseAccount(data)
}

// Sent returns the transactions accepted so far
func (f *FakeLedger) Sent() []*solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*solana.Transaction{}, f.sent...)
}

// Calls returns how often method was invoked
func (f *FakeLedger) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeLedger) enter(method string) error {
	f.calls[method]++
	if f.down {
		return ErrLedgerDown
	}
	return nil
}

// LatestBlockhash implements LedgerRPC
func (f *FakeLedger) LatestBlockhash(ctx context.Context, _ rpc.CommitmentType) (solana.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("getLatestBlockhash"); err != nil {
		return solana.Hash{}, err
	}
	return f.blockhash, ctx.Err()
}

// Health implements LedgerRPC
func (f *FakeLedger) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("getHealth"); err != nil {
		return err
	}
	return ctx.Err()
}

// AccountData implements LedgerRPC
func (f *FakeLedger) AccountData(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("getAccountInfo"); err != nil {
		return nil, err
	}
	data, ok := f.accounts[account]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return append([]byte{}, data...), nil
}

// Balance implements LedgerRPC
func (f *FakeLedger) Balance(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("getBalance"); err != nil {
		return 0, err
	}
	return f.balances[account], nil
}

// SendTransaction implements LedgerRPC. The whole transaction is applied
// atomically or not at all.
func (f *FakeLedger) SendTransaction(_ context.Context, tx *solana.Transaction, _ rpc.CommitmentType) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enter("sendTransaction"); err != nil {
		return solana.Signature{}, err
	}
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction is unsigned")
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("signature verification failed: %w", err)
	}
	if !tx.Message.RecentBlockhash.Equals(f.blockhash) {
		return solana.Signature{}, errors.New("blockhash not found")
	}

	accounts := make(map[solana.PublicKey][]byte, len(f.accounts))
	for k, v := range f.accounts {
		accounts[k] = v
	}
	balances := make(map[solana.PublicKey]uint64, len(f.balances))
	for k, v := range f.balances {
		balances[k] = v
	}

	for i, ci := range tx.Message.Instructions {
		keys := tx.Message.AccountKeys
		if int(ci.ProgramIDIndex) >= len(keys) || !keys[ci.ProgramIDIndex].Equals(f.programID) {
			return solana.Signature{}, fmt.Errorf("instruction %d: unknown program", i)
		}
		metas := make([]solana.PublicKey, len(ci.Accounts))
		for j, idx := range ci.Accounts {
			metas[j] = keys[idx]
		}
		if err := apply(accounts, balances, metas, ci.Data); err != nil {
			return solana.Signature{}, fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	f.accounts = accounts
	f.balances = balances
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func apply(accounts map[solana.PublicKey][]byte, balances map[solana.PublicKey]uint64, metas []solana.PublicKey, data []byte) error {
	call, err := anchor.DecodeInstruction(data)
	if err != nil {
		return err
	}

	load := func(base solana.PublicKey) (models.ListAccount, error) {
		raw, ok := accounts[base]
		if !ok {
			return models.ListAccount{}, errors.New("AccountNotInitialized")
		}
		return anchor.DecodeBaseAccount(raw)
	}
	store := func(base solana.PublicKey, acc models.ListAccount) error {
		raw, err := anchor.EncodeBaseAccount(acc)
		if err != nil {
			return err
		}
		accounts[base] = raw
		return nil
	}

	switch call.Name {
	case anchor.InstructionStartStuffOff:
		if len(metas) < 2 {
			return errors.New("missing accounts")
		}
		if _, exists := accounts[metas[0]]; exists {
			return errors.New("account already in use")
		}
		return store(metas[0], models.ListAccount{GifList: []models.GifEntry{}})

	case anchor.InstructionAddGif:
		if len(metas) < 2 {
			return errors.New("missing accounts")
		}
		acc, err := load(metas[0])
		if err != nil {
			return err
		}
		acc.GifList = append(acc.GifList, models.GifEntry{GifLink: call.Link, UserAddress: metas[1]})
		acc.TotalGifs++
		return store(metas[0], acc)

	case anchor.InstructionUpvote:
		if len(metas) < 1 {
			return errors.New("missing accounts")
		}
		acc, err := load(metas[0])
		if err != nil {
			return err
		}
		for i := range acc.GifList {
			if acc.GifList[i].GifLink == call.Link {
				acc.GifList[i].Votes++
				return store(metas[0], acc)
			}
		}
		return fmt.Errorf("no entry with link %q", call.Link)

	case anchor.InstructionSendSol:
		if len(metas) < 2 {
			return errors.New("missing accounts")
		}
		from, to := metas[0], metas[1]
		if balances[from] < call.Amount {
			return errors.New("insufficient funds")
		}
		balances[from] -= call.Amount
		balances[to] += call.Amount
		return nil
	}

	return fmt.Errorf("unhandled instruction %s", call.Name)
}
