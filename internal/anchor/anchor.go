// Package anchor encodes calls to the GIF program and decodes its list
// account. The program follows the Anchor layout: every instruction and
// account is prefixed with an 8-byte discriminator, and the payload is Borsh.
package anchor

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"solana-gif-portal/internal/models"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction names as they appear in the program IDL
const (
	InstructionStartStuffOff = "start_stuff_off"
	InstructionAddGif        = "add_gif"
	InstructionUpvote        = "upvote"
	InstructionSendSol       = "send_sol"
)

// BaseAccountName is the account type holding the shared list
const BaseAccountName = "BaseAccount"

// DiscriminatorSize is the length of every Anchor discriminator
const DiscriminatorSize = 8

// Discriminator is the 8-byte tag Anchor prepends to instructions and accounts
type Discriminator [DiscriminatorSize]byte

var (
	// ErrShortData is returned when a buffer is too small to hold a discriminator
	ErrShortData = errors.New("data shorter than discriminator")
	// ErrDiscriminatorMismatch is returned when the data belongs to another type
	ErrDiscriminatorMismatch = errors.New("discriminator mismatch")
)

func sighash(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// InstructionDiscriminator returns the tag of a global instruction
func InstructionDiscriminator(name string) Discriminator {
	return sighash("global", name)
}

// AccountDiscriminator returns the tag of an account type
func AccountDiscriminator(name string) Discriminator {
	return sighash("account", name)
}

// encodeInstruction writes the discriminator for name followed by each arg
// in Borsh.
func encodeInstruction(name string, args ...interface{}) ([]byte, error) {
	var buf bytes.Buffer
	d := InstructionDiscriminator(name)
	buf.Write(d[:])

	enc := bin.NewBorshEncoder(&buf)
	for _, arg := range args {
		if err := enc.Encode(arg); err != nil {
			return nil, fmt.Errorf("encode %s args: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

// StartStuffOff creates the shared list account. The base account must
// co-sign because it is being created.
func StartStuffOff(programID, baseAccount, user solana.PublicKey) (solana.Instruction, error) {
	data, err := encodeInstruction(InstructionStartStuffOff)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(baseAccount, true, true),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

// AddGif appends link to the list on behalf of user
func AddGif(programID, baseAccount, user solana.PublicKey, link string) (solana.Instruction, error) {
	data, err := encodeInstruction(InstructionAddGif, link)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(baseAccount, true, false),
		solana.NewAccountMeta(user, true, true),
	}, data), nil
}

// Upvote increments the votes of the entry whose link matches
func Upvote(programID, baseAccount solana.PublicKey, link string) (solana.Instruction, error) {
	data, err := encodeInstruction(InstructionUpvote, link)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(baseAccount, true, false),
	}, data), nil
}

// SendSol moves amount lamports from the funding account to recipient.
// fromSigner marks the funding account as a transaction signer, which is
// required whenever the client holds its key.
func SendSol(programID, from, to solana.PublicKey, amount uint64, fromSigner bool) (solana.Instruction, error) {
	data, err := encodeInstruction(InstructionSendSol, amount)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(from, true, fromSigner),
		solana.NewAccountMeta(to, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

// itemLayout mirrors ItemStruct in the program
type itemLayout struct {
	GifLink     string
	UserAddress solana.PublicKey
	Votes       uint64
}

// baseAccountLayout mirrors BaseAccount in the program
type baseAccountLayout struct {
	TotalGifs uint64
	GifList   []itemLayout
}

// DecodeBaseAccount parses raw account data into a ListAccount. Trailing
// bytes from over-allocated account space are ignored.
func DecodeBaseAccount(data []byte) (models.ListAccount, error) {
	if len(data) < DiscriminatorSize {
		return models.ListAccount{}, ErrShortData
	}
	want := AccountDiscriminator(BaseAccountName)
	if !bytes.Equal(data[:DiscriminatorSize], want[:]) {
		return models.ListAccount{}, ErrDiscriminatorMismatch
	}

	var layout baseAccountLayout
	if err := bin.NewBorshDecoder(data[DiscriminatorSize:]).Decode(&layout); err != nil {
		return models.ListAccount{}, fmt.Errorf("decode base account: %w", err)
	}

	acc := models.ListAccount{
		TotalGifs: layout.TotalGifs,
		GifList:   make([]models.GifEntry, len(layout.GifList)),
	}
	for i, item := range layout.GifList {
		acc.GifList[i] = models.GifEntry{
			GifLink:     item.GifLink,
			UserAddress: item.UserAddress,
			Votes:       item.Votes,
		}
	}
	return acc, nil
}

// EncodeBaseAccount is the inverse of DecodeBaseAccount
func EncodeBaseAccount(acc models.ListAccount) ([]byte, error) {
	layout := baseAccountLayout{
		TotalGifs: acc.TotalGifs,
		GifList:   make([]itemLayout, len(acc.GifList)),
	}
	for i, e := range acc.GifList {
		layout.GifList[i] = itemLayout{GifLink: e.GifLink, UserAddress: e.UserAddress, Votes: e.Votes}
	}

	var buf bytes.Buffer
	d := AccountDiscriminator(BaseAccountName)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(&buf).Encode(&layout); err != nil {
		return nil, fmt.Errorf("encode base account: %w", err)
	}
	return buf.Bytes(), nil
}

// Call is a decoded program instruction
type Call struct {
	Name   string
	Link   string
	Amount uint64
}

var knownInstructions = []string{
	InstructionStartStuffOff,
	InstructionAddGif,
	InstructionUpvote,
	InstructionSendSol,
}

// DecodeInstruction identifies which program call data encodes and parses
// its single argument.
func DecodeInstruction(data []byte) (Call, error) {
	if len(data) < DiscriminatorSize {
		return Call{}, ErrShortData
	}

	for _, name := range knownInstructions {
		d := InstructionDiscriminator(name)
		if !bytes.Equal(data[:DiscriminatorSize], d[:]) {
			continue
		}

		call := Call{Name: name}
		dec := bin.NewBorshDecoder(data[DiscriminatorSize:])
		var err error
		switch name {
		case InstructionAddGif, InstructionUpvote:
			err = dec.Decode(&call.Link)
		case InstructionSendSol:
			err = dec.Decode(&call.Amount)
		}
		if err != nil {
			return Call{}, fmt.Errorf("decode %s args: %w", name, err)
		}
		return call, nil
	}

	return Call{}, ErrDiscriminatorMismatch
}
