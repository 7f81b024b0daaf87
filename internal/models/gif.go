package models

import (
	"github.com/gagliardetto/solana-go"
)

// GifEntry is one item of the shared list as stored by the program
type GifEntry struct {
	GifLink     string           `json:"gif_link"`
	UserAddress solana.PublicKey `json:"user_address"`
	Votes       uint64           `json:"votes"`
}

// ListAccount is the decoded shared list account
type ListAccount struct {
	TotalGifs uint64     `json:"total_gifs"`
	GifList   []GifEntry `json:"gif_list"`
}

// DisplayEntry is a GifEntry joined with its author's balance in lamports
type DisplayEntry struct {
	GifEntry
	Balance uint64 `json:"balance"`
}

// ListStatus distinguishes a missing list from an empty one
type ListStatus string

const (
	ListLoading       ListStatus = "loading"
	ListUninitialized ListStatus = "uninitialized"
	ListEmpty         ListStatus = "empty"
	ListReady         ListStatus = "ready"
)

// ListState is the reconciled, UI-ready view of the shared list.
// Entries is only populated when Status is ListReady.
type ListState struct {
	Status  ListStatus     `json:"status"`
	Entries []DisplayEntry `json:"entries"`
}

// LoadingState is the state before any fetch has completed
func LoadingState() ListState {
	return ListState{Status: ListLoading, Entries: []DisplayEntry{}}
}

// UninitializedState reports that the list account could not be read
func UninitializedState() ListState {
	return ListState{Status: ListUninitialized, Entries: []DisplayEntry{}}
}

// EmptyState reports an existing list account with no entries
func EmptyState() ListState {
	return ListState{Status: ListEmpty, Entries: []DisplayEntry{}}
}

// ReadyState wraps a fully joined list. An empty slice yields EmptyState.
func ReadyState(entries []DisplayEntry) ListState {
	if len(entries) == 0 {
		return EmptyState()
	}
	return ListState{Status: ListReady, Entries: entries}
}

// Available reports whether the list exists on chain
func (s ListState) Available() bool {
	return s.Status == ListEmpty || s.Status == ListReady
}

// Session is the connected signing identity, if any
type Session struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
}

// Screen names the view the client should render
type Screen string

const (
	ScreenConnect    Screen = "connect"
	ScreenLoading    Screen = "loading"
	ScreenInitialize Screen = "initialize"
	ScreenGrid       Screen = "grid"
)

// ViewState is everything the single screen needs to render
type ViewState struct {
	Screen        Screen    `json:"screen"`
	Session       Session   `json:"session"`
	List          ListState `json:"list"`
	PendingInput  string    `json:"pending_input"`
	SuggestedGifs []string  `json:"suggested_gifs"`
	TipLamports   uint64    `json:"tip_lamports"`
}

// SubmitGifRequest is the body of POST /api/gifs
type SubmitGifRequest struct {
	GifLink string `json:"gif_link"`
}

// UpvoteRequest is the body of POST /api/gifs/upvote
type UpvoteRequest struct {
	GifLink string `json:"gif_link"`
}

// TipRequest is the body of POST /api/gifs/tip. Amount defaults to the
// configured tip when zero.
type TipRequest struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount,omitempty"`
}

// DraftRequest updates the pending submission input
type DraftRequest struct {
	Value string `json:"value"`
}

// TxResponse reports a confirmed submission
type TxResponse struct {
	Signature string    `json:"signature"`
	List      ListState `json:"list"`
}
