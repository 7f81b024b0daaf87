package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"solana-gif-portal/internal/config"
	"solana-gif-portal/internal/models"
	"solana-gif-portal/internal/wallet"
	"solana-gif-portal/pkg/logger"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Event kinds published to the EventSink
const (
	EventView  = "view"
	EventAlert = "alert"
)

// Portal coordinates the session, the gateway and the reconciler and holds
// the state behind the single screen.
type Portal struct {
	sessions   *wallet.Manager
	gateway    Gateway
	reconciler *Reconciler
	program    config.ProgramConfig
	events     EventSink

	draftMu sync.Mutex
	draft   string
}

// NewPortal wires the coordinator. events may be nil.
func NewPortal(sessions *wallet.Manager, gateway Gateway, reconciler *Reconciler, program config.ProgramConfig, events EventSink) *Portal {
	p := &Portal{
		sessions:   sessions,
		gateway:    gateway,
		reconciler: reconciler,
		program:    program,
		events:     events,
	}

	sessions.Subscribe(func(s models.Session) {
		if !s.Connected {
			reconciler.Reset()
			p.clearDraft()
		}
		p.publishView()
	})
	reconciler.Subscribe(func(models.ListState) { p.publishView() })

	return p
}

// View returns the current screen state
func (p *Portal) View() models.ViewState {
	session := p.sessions.Session()
	list := p.reconciler.State()

	p.draftMu.Lock()
	draft := p.draft
	p.draftMu.Unlock()

	return models.ViewState{
		Screen:        DeriveScreen(session, list),
		Session:       session,
		List:          list,
		PendingInput:  draft,
		SuggestedGifs: p.program.SuggestedGifs,
		TipLamports:   p.program.TipLamports,
	}
}

// Probe restores a previously authorized session without prompting and
// loads the list when one is found.
func (p *Portal) Probe(ctx context.Context) models.ViewState {
	if s := p.sessions.ProbeExistingSession(ctx); s.Connected {
		p.reconciler.Refresh(p.sessionContext(ctx))
	}
	return p.View()
}

// Connect prompts the wallet and loads the list on success
func (p *Portal) Connect(ctx context.Context) (models.ViewState, error) {
	if _, err := p.sessions.RequestSession(ctx); err != nil {
		return p.View(), err
	}
	p.reconciler.Refresh(p.sessionContext(ctx))
	return p.View(), nil
}

// Disconnect ends the session
func (p *Portal) Disconnect() models.ViewState {
	p.sessions.EndSession()
	return p.View()
}

// Refresh re-reads the list. It requires a session.
func (p *Portal) Refresh(ctx context.Context) (models.ListState, error) {
	if !p.sessions.Session().Connected {
		return p.reconciler.State(), models.ErrSessionRequired
	}
	return p.reconciler.Refresh(p.sessionContext(ctx)), nil
}

// SetDraft stores the pending submission input
func (p *Portal) SetDraft(value string) models.ViewState {
	p.draftMu.Lock()
	p.draft = value
	p.draftMu.Unlock()
	p.publishView()
	return p.View()
}

// InitializeList performs the one-time list account creation
func (p *Portal) InitializeList(ctx context.Context) (models.TxResponse, error) {
	return p.write(ctx, "initialize", func(ctx context.Context) (solana.Signature, error) {
		return p.gateway.InitializeListAccount(ctx)
	})
}

// SubmitGif appends link, or the pending draft when link is empty. A link of
// only whitespace is rejected. The draft is cleared only after the program
// confirms the append of that same value.
func (p *Portal) SubmitGif(ctx context.Context, link string) (models.TxResponse, error) {
	if link == "" {
		p.draftMu.Lock()
		link = p.draft
		p.draftMu.Unlock()
	} else {
		link = strings.TrimSpace(link)
		if link == "" {
			return models.TxResponse{List: p.reconciler.State()},
				models.NewValidationError("GIF link is required", "the link is blank")
		}
	}
	if len(link) == 0 {
		return models.TxResponse{List: p.reconciler.State()},
			models.NewValidationError("GIF link is required", "submit a non-empty link")
	}

	resp, err := p.write(ctx, "submit", func(ctx context.Context) (solana.Signature, error) {
		return p.gateway.AppendEntry(ctx, link)
	})
	if err == nil && p.clearDraftIf(link) {
		p.publishView()
	}
	return resp, err
}

// Upvote upvotes the entry identified by link
func (p *Portal) Upvote(ctx context.Context, link string) (models.TxResponse, error) {
	if link == "" {
		return models.TxResponse{List: p.reconciler.State()},
			models.NewValidationError("GIF link is required", "upvote targets an entry by its link")
	}
	return p.write(ctx, "upvote", func(ctx context.Context) (solana.Signature, error) {
		return p.gateway.UpvoteEntry(ctx, link)
	})
}

// Tip sends amount lamports to recipient, or the configured tip when amount
// is zero. Any valid address is accepted.
func (p *Portal) Tip(ctx context.Context, recipient string, amount uint64) (models.TxResponse, error) {
	to, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return models.TxResponse{List: p.reconciler.State()},
			models.NewValidationError("Invalid recipient address", err.Error())
	}
	if amount == 0 {
		amount = p.program.TipLamports
	}

	return p.write(ctx, "tip", func(ctx context.Context) (solana.Signature, error) {
		sig, err := p.gateway.TransferValue(ctx, amount, to)
		if err == nil {
			p.reconciler.Invalidate(to, p.gateway.FundingKey())
		}
		return sig, err
	})
}

// write runs one gateway submission and refreshes the list when it succeeds.
// The session pays the fee, so its cached balance is dropped first.
// On failure nothing local changes.
func (p *Portal) write(ctx context.Context, action string, submit func(context.Context) (solana.Signature, error)) (models.TxResponse, error) {
	if !p.sessions.Session().Connected {
		return models.TxResponse{List: p.reconciler.State()}, models.ErrSessionRequired
	}

	ctx = p.sessionContext(ctx)
	log := logger.GetLogger().WithContext(ctx)

	sig, err := submit(ctx)
	if err != nil {
		log.Warn("Portal action failed", zap.String("action", action), zap.Error(err))
		return models.TxResponse{List: p.reconciler.State()}, fmt.Errorf("%s: %w", action, err)
	}

	if payer, err := solana.PublicKeyFromBase58(p.sessions.Session().Address); err == nil {
		p.reconciler.Invalidate(payer)
	}
	list := p.reconciler.Refresh(ctx)
	return models.TxResponse{Signature: sig.String(), List: list}, nil
}

func (p *Portal) sessionContext(ctx context.Context) context.Context {
	if s := p.sessions.Session(); s.Connected {
		return logger.ContextWithWallet(ctx, s.Address)
	}
	return ctx
}

func (p *Portal) clearDraft() {
	p.draftMu.Lock()
	p.draft = ""
	p.draftMu.Unlock()
}

// clearDraftIf clears the draft when it still holds value
func (p *Portal) clearDraftIf(value string) bool {
	p.draftMu.Lock()
	defer p.draftMu.Unlock()
	if p.draft != value {
		return false
	}
	p.draft = ""
	return true
}

func (p *Portal) publishView() {
	if p.events != nil {
		p.events.Publish(EventView, p.View())
	}
}

// SinkAlerter forwards session alerts to an EventSink
type SinkAlerter struct {
	Sink EventSink
}

// Alert implements wallet.Alerter
func (a SinkAlerter) Alert(message string) {
	logger.GetLogger().Info("User alert", zap.String("message", message))
	if a.Sink != nil {
		a.Sink.Publish(EventAlert, map[string]string{"message": message})
	}
}
