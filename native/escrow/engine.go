package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/common"
	"nftmarket/native/fees"
	"nftmarket/observability/metrics"
	"nftmarket/payments"
)

const moduleName = "escrow"

// Payout failure policies applied when a release's transfer attempt fails.
// The original ledger behaviour is to mark RELEASED regardless and leave the
// recorded error for manual reconciliation; operators who prefer to park the
// escrow for mediation configure the dispute policy instead.
const (
	PayoutFailureRelease = "release"
	PayoutFailureDispute = "dispute"
)

var (
	errNilState = errors.New("escrow engine: state not configured")

	ErrEscrowNotFound   = fmt.Errorf("escrow: escrow not found: %w", common.ErrNotFound)
	ErrNotPending       = fmt.Errorf("escrow: escrow is not pending: %w", common.ErrInvalidState)
	ErrNotReleasable    = fmt.Errorf("escrow: escrow is not held or disputed: %w", common.ErrInvalidState)
	ErrNotRefundable    = fmt.Errorf("escrow: escrow is not refundable: %w", common.ErrInvalidState)
	ErrNotDisputable    = fmt.Errorf("escrow: only held escrows can be disputed: %w", common.ErrInvalidState)
	ErrVerifyUnsupported = fmt.Errorf("escrow: deposit verification not supported for chain/currency: %w", common.ErrUnsupported)
	ErrDepositNotFound  = fmt.Errorf("escrow: no matching deposit at or above the expected amount: %w", common.ErrVerification)
	ErrDepositFailed    = fmt.Errorf("escrow: deposit transaction did not succeed: %w", common.ErrVerification)
	ErrSplitExceedsHold = fmt.Errorf("escrow: commission and royalty exceed the held amount: %w", common.ErrValidation)
)

// PlatformConfig is the read-only operator configuration consumed by the
// ledger.
type PlatformConfig interface {
	CommissionBps() uint32
	// ChainFamily resolves the payment-rail family of a chain.
	ChainFamily(chain string) (string, bool)
	CustodyAddress(chain string) (string, bool)
	// SigningKey returns the platform signing credential for payouts.
	SigningKey(chain string) (string, bool)
	// StableAsset returns the designated stable currency symbol and its
	// contract address on the chain.
	StableAsset(chain string) (symbol, contract string, ok bool)
	PayoutFailurePolicy() string
}

// Writer is the narrow persistence surface needed to record a new ledger
// entry. The market engine passes its transactional state view here so an
// offer or buy-now trade and its escrow commit together.
type Writer interface {
	EscrowPut(ctx context.Context, e *Escrow) error
}

// State is the persistence surface consumed by the ledger. Conditional writes
// must report common.ErrConflict when the status guard matches zero rows.
type State interface {
	Writer
	EscrowGet(ctx context.Context, id uuid.UUID) (*Escrow, error)
	// EscrowForOffer returns the ledger entry opened for an offer.
	EscrowForOffer(ctx context.Context, offerID uuid.UUID) (*Escrow, error)
	// EscrowApplyHold moves PENDING into HELD and records the deposit
	// transaction reference.
	EscrowApplyHold(ctx context.Context, id uuid.UUID, txRef string) error
	// EscrowApplyResolve finalizes the escrow from the supplied prior
	// status, merging metadata and recording an optional payout reference.
	EscrowApplyResolve(ctx context.Context, id uuid.UUID, from, to Status, txRef string, meta types.Metadata) error
	// TradeContext resolves the listing/offer/asset surrounding an escrow.
	TradeContext(ctx context.Context, e *Escrow) (*TradeContext, error)
	// OrderMarkCompleted promotes a CONFIRMED order to COMPLETED.
	OrderMarkCompleted(ctx context.Context, orderID uuid.UUID, at time.Time) error
	// CreatorWallet resolves the collection creator's wallet on a chain for
	// royalty routing.
	CreatorWallet(ctx context.Context, collectionID uuid.UUID, chain string) (string, bool, error)
}

// Engine is the escrow ledger: it tracks custodied funds per trade, verifies
// external deposits and resolves every entry to RELEASED or REFUNDED.
type Engine struct {
	state   State
	rails   *payments.Registry
	cfg     PlatformConfig
	emitter events.Emitter
	nowFn   func() time.Time
	pauses  common.PauseView
}

// NewEngine constructs an escrow ledger over the supplied state, rail registry
// and platform configuration.
func NewEngine(state State, rails *payments.Registry, cfg PlatformConfig) *Engine {
	return &Engine{
		state:   state,
		rails:   rails,
		cfg:     cfg,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetEmitter configures the event emitter. Passing nil resets to no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the module pause view.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: evt})
}

func (e *Engine) commission(amount *big.Int) *big.Int {
	policy := fees.Policy{CommissionBps: e.cfg.CommissionBps()}
	return policy.Commission(amount)
}

// CreateHold opens a HELD escrow for a trade whose funds entered custody
// synchronously (the buy-now path). The commission is fixed here and never
// recomputed.
func (e *Engine) CreateHold(ctx context.Context, in CreateInput) (*Escrow, error) {
	return e.create(ctx, in, StatusHeld)
}

// CreatePending opens a PENDING escrow awaiting an external deposit (the
// offer path). The commission is fixed here and never recomputed.
func (e *Engine) CreatePending(ctx context.Context, in CreateInput) (*Escrow, error) {
	return e.create(ctx, in, StatusPending)
}

// PrepareHold assembles a HELD entry without persisting it. The caller writes
// it through its own transactional state and publishes it with EmitCreated
// once the transaction commits.
func (e *Engine) PrepareHold(in CreateInput) (*Escrow, error) {
	return e.prepare(in, StatusHeld)
}

// PreparePending assembles a PENDING entry without persisting it; see
// PrepareHold for the caller's obligations.
func (e *Engine) PreparePending(in CreateInput) (*Escrow, error) {
	return e.prepare(in, StatusPending)
}

// EmitCreated publishes the created event for an entry persisted by the
// caller.
func (e *Engine) EmitCreated(esc *Escrow) {
	if esc == nil {
		return
	}
	e.emit(NewCreatedEvent(esc))
}

func (e *Engine) prepare(in CreateInput, status Status) (*Escrow, error) {
	if e == nil || e.cfg == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: amount must be positive: %w", common.ErrValidation)
	}
	if in.Currency == "" {
		return nil, fmt.Errorf("escrow: currency is required: %w", common.ErrValidation)
	}
	now := e.nowFn()
	return &Escrow{
		ID:               uuid.New(),
		ListingID:        in.ListingID,
		OfferID:          in.OfferID,
		OrderID:          in.OrderID,
		BuyerID:          in.BuyerID,
		SellerID:         in.SellerID,
		Amount:           types.NewAmount(in.Amount),
		Currency:         in.Currency,
		CommissionAmount: types.NewAmount(e.commission(in.Amount)),
		Status:           status,
		Metadata:         types.Metadata{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (e *Engine) create(ctx context.Context, in CreateInput, status Status) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, err := e.prepare(in, status)
	if err != nil {
		return nil, err
	}
	if err := e.state.EscrowPut(ctx, esc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc, nil
}

// VerifyDepositForOffer checks the referenced transaction for a stable-asset
// transfer into platform custody covering the escrowed amount, moving the
// PENDING escrow into HELD on success. Verification is only supported for
// account-family chains and the chain's designated stable asset; any other
// combination fails without side effects.
func (e *Engine) VerifyDepositForOffer(ctx context.Context, offerID uuid.UUID, txRef string) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	esc, err := e.state.EscrowForOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}
	if esc.Status != StatusPending {
		return nil, fmt.Errorf("cannot verify deposit for escrow with status %s: %w", esc.Status, ErrNotPending)
	}
	tc, err := e.state.TradeContext(ctx, esc)
	if err != nil {
		return nil, err
	}
	client, stableContract, custody, err := e.depositRoute(tc.Chain, esc.Currency)
	if err != nil {
		return nil, err
	}
	receipt, err := client.GetReceipt(ctx, txRef)
	if err != nil {
		return nil, fmt.Errorf("escrow: %v: %w", err, common.ErrVerification)
	}
	if !receipt.Success {
		return nil, ErrDepositFailed
	}
	expected := esc.Amount.BigInt()
	matched := false
	for _, transfer := range receipt.Transfers {
		if !payments.SameAddress(transfer.Contract, stableContract) {
			continue
		}
		if !payments.SameAddress(transfer.To, custody) {
			continue
		}
		if transfer.Value == nil || transfer.Value.Cmp(expected) < 0 {
			continue
		}
		matched = true
		break
	}
	if !matched {
		return nil, ErrDepositNotFound
	}
	if err := e.state.EscrowApplyHold(ctx, esc.ID, receipt.TxRef); err != nil {
		return nil, err
	}
	esc.Status = StatusHeld
	esc.TxRef = receipt.TxRef
	e.emit(NewHeldEvent(esc))
	return esc, nil
}

// depositRoute resolves the rail client, stable contract and custody address
// for a chain, rejecting unsupported combinations.
func (e *Engine) depositRoute(chain, currency string) (payments.Client, string, string, error) {
	family, ok := e.cfg.ChainFamily(chain)
	if !ok || family != payments.FamilyAccount {
		return nil, "", "", ErrVerifyUnsupported
	}
	symbol, contract, ok := e.cfg.StableAsset(chain)
	if !ok || symbol != currency {
		return nil, "", "", ErrVerifyUnsupported
	}
	custody, ok := e.cfg.CustodyAddress(chain)
	if !ok {
		return nil, "", "", ErrVerifyUnsupported
	}
	var client payments.Client
	if e.rails != nil {
		client, ok = e.rails.ForFamily(family)
	} else {
		ok = false
	}
	if !ok {
		return nil, "", "", ErrVerifyUnsupported
	}
	return client, contract, custody, nil
}

// Release resolves the trade surrounding the escrow, recomputes the royalty
// and, when payout automation is configured for the chain and currency,
// attempts the seller and royalty transfers. Each attempt's transaction id or
// error is recorded independently in metadata with no synchronous retry. The
// terminal status follows the configured payout-failure policy; without
// automation the escrow is released for manual settlement.
func (e *Engine) Release(ctx context.Context, id uuid.UUID, txRef string) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	esc, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if esc.Status == StatusReleased {
		return esc, nil
	}
	if esc.Status != StatusHeld && esc.Status != StatusDisputed {
		return nil, fmt.Errorf("cannot release escrow with status %s: %w", esc.Status, ErrNotReleasable)
	}
	tc, err := e.state.TradeContext(ctx, esc)
	if err != nil {
		return nil, err
	}
	amount := esc.Amount.BigInt()
	commission := esc.CommissionAmount.BigInt()
	royalty := fees.Royalty(amount, tc.RoyaltyBps)

	meta := types.Metadata{}
	final := StatusReleased

	client, stableContract, key, automated := e.payoutRoute(tc.Chain, esc.Currency)
	if automated {
		sellerAmount, err := fees.SellerProceeds(amount, commission, royalty)
		if err != nil {
			return nil, ErrSplitExceedsHold
		}
		// A release retried after a partial failure (the dispute-policy
		// path) must not replay legs whose transfer already went through;
		// the recorded payout reference marks a leg as settled.
		failed := false
		if sellerAmount.Sign() > 0 && esc.Metadata[MetaSellerPayoutTx] == "" {
			if payoutTx, err := client.SendValueTransfer(ctx, key, stableContract, tc.SellerAddress, sellerAmount); err != nil {
				meta[MetaSellerPayoutError] = err.Error()
				metrics.Market().ObservePayoutFailure("seller")
				failed = true
			} else {
				meta[MetaSellerPayoutTx] = payoutTx
			}
		}
		if royalty.Sign() > 0 && tc.CollectionID != nil && esc.Metadata[MetaRoyaltyPayoutTx] == "" {
			wallet, ok, err := e.state.CreatorWallet(ctx, *tc.CollectionID, tc.Chain)
			if err != nil {
				return nil, err
			}
			if ok {
				meta[MetaRoyaltyWallet] = wallet
				if royaltyTx, err := client.SendValueTransfer(ctx, key, stableContract, wallet, royalty); err != nil {
					meta[MetaRoyaltyPayoutError] = err.Error()
					metrics.Market().ObservePayoutFailure("royalty")
					failed = true
				} else {
					meta[MetaRoyaltyPayoutTx] = royaltyTx
				}
			} else {
				meta[MetaRoyaltyPayoutError] = "no creator wallet for chain"
			}
		}
		if failed && e.cfg.PayoutFailurePolicy() == PayoutFailureDispute {
			final = StatusDisputed
		}
	} else {
		meta[MetaSettlement] = "manual"
	}

	if err := e.state.EscrowApplyResolve(ctx, esc.ID, esc.Status, final, txRef, meta); err != nil {
		return nil, err
	}
	metrics.Market().ObserveEscrowResolution(string(final))
	if final == StatusReleased && tc.OrderID != nil {
		if err := e.state.OrderMarkCompleted(ctx, *tc.OrderID, e.nowFn()); err != nil {
			return nil, err
		}
	}
	esc.Status = final
	if txRef != "" {
		esc.TxRef = txRef
	}
	if esc.Metadata == nil {
		esc.Metadata = types.Metadata{}
	}
	for k, v := range meta {
		esc.Metadata[k] = v
	}
	if final == StatusDisputed {
		e.emit(NewDisputedEvent(esc))
	} else {
		e.emit(NewReleasedEvent(esc))
	}
	return esc, nil
}

// payoutRoute reports whether payout automation is configured for the
// chain/currency pair and returns the pieces needed to attempt transfers.
func (e *Engine) payoutRoute(chain, currency string) (payments.Client, string, string, bool) {
	family, ok := e.cfg.ChainFamily(chain)
	if !ok {
		return nil, "", "", false
	}
	symbol, contract, ok := e.cfg.StableAsset(chain)
	if !ok || symbol != currency {
		return nil, "", "", false
	}
	key, ok := e.cfg.SigningKey(chain)
	if !ok || key == "" {
		return nil, "", "", false
	}
	if e.rails == nil {
		return nil, "", "", false
	}
	client, ok := e.rails.ForFamily(family)
	if !ok {
		return nil, "", "", false
	}
	return client, contract, key, true
}

// Refund marks the escrow REFUNDED and stores the reason. It moves no funds
// itself; the refund transfer is an operator action outside the ledger.
func (e *Engine) Refund(ctx context.Context, id uuid.UUID, reason string) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	esc, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch esc.Status {
	case StatusHeld, StatusPending, StatusDisputed:
	default:
		return nil, fmt.Errorf("cannot refund escrow with status %s: %w", esc.Status, ErrNotRefundable)
	}
	meta := types.Metadata{}
	if reason != "" {
		meta[MetaRefundReason] = reason
	}
	if err := e.state.EscrowApplyResolve(ctx, esc.ID, esc.Status, StatusRefunded, "", meta); err != nil {
		return nil, err
	}
	metrics.Market().ObserveEscrowResolution(string(StatusRefunded))
	esc.Status = StatusRefunded
	if esc.Metadata == nil {
		esc.Metadata = types.Metadata{}
	}
	for k, v := range meta {
		esc.Metadata[k] = v
	}
	e.emit(NewRefundedEvent(esc))
	return esc, nil
}

// Dispute parks a HELD escrow for manual mediation.
func (e *Engine) Dispute(ctx context.Context, id uuid.UUID, reason string) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	esc, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if esc.Status == StatusDisputed {
		return esc, nil
	}
	if esc.Status != StatusHeld {
		return nil, fmt.Errorf("cannot dispute escrow with status %s: %w", esc.Status, ErrNotDisputable)
	}
	meta := types.Metadata{}
	if reason != "" {
		meta[MetaDisputeReason] = reason
	}
	if err := e.state.EscrowApplyResolve(ctx, esc.ID, esc.Status, StatusDisputed, "", meta); err != nil {
		return nil, err
	}
	esc.Status = StatusDisputed
	if esc.Metadata == nil {
		esc.Metadata = types.Metadata{}
	}
	for k, v := range meta {
		esc.Metadata[k] = v
	}
	e.emit(NewDisputedEvent(esc))
	return esc, nil
}

func (e *Engine) load(ctx context.Context, id uuid.UUID) (*Escrow, error) {
	esc, err := e.state.EscrowGet(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}
	return esc, nil
}
