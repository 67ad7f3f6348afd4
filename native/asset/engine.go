package asset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/common"
)

const moduleName = "asset"

var (
	errNilState      = errors.New("asset engine: state not configured")
	ErrAssetNotFound = fmt.Errorf("asset: asset not found: %w", common.ErrNotFound)
	ErrAssetLocked   = fmt.Errorf("asset: asset is locked: %w", common.ErrInvalidState)
	ErrLockNotDue    = fmt.Errorf("asset: lock period has not elapsed: %w", common.ErrInvalidState)
)

// State is the persistence surface consumed by the asset engine. Conditional
// writes must report common.ErrConflict when the guard matches zero rows.
type State interface {
	AssetGet(ctx context.Context, id uuid.UUID) (*Asset, error)
	AssetPut(ctx context.Context, a *Asset) error
	// AssetApplyLock moves the asset from the supplied prior status into
	// LOCKED with the custody flag set, guarded on the prior status and an
	// unlocked flag.
	AssetApplyLock(ctx context.Context, id uuid.UUID, from Status, reason string, until *time.Time) error
	// AssetApplyUnlock returns a LOCKED asset to MINTED and clears custody.
	AssetApplyUnlock(ctx context.Context, id uuid.UUID) error
	// AssetApplyStatus performs a bare guarded status transition.
	AssetApplyStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	// AssetMarkCustody sets the custody flag without touching the lifecycle
	// status, guarded on the flag being clear.
	AssetMarkCustody(ctx context.Context, id uuid.UUID, reason string) error
	// AssetReleaseCustody clears the custody flag, guarded on the supplied
	// reason.
	AssetReleaseCustody(ctx context.Context, id uuid.UUID, reason string) error
	// AssetApplyTransfer records a change of ownership, guarded on the prior
	// status, and clears any custody flag.
	AssetApplyTransfer(ctx context.Context, id uuid.UUID, from Status, ownerID uuid.UUID, ownerAddress string) error
}

// Engine drives asset lifecycle transitions through the fixed table.
type Engine struct {
	state   State
	emitter events.Emitter
	nowFn   func() time.Time
	pauses  common.PauseView
}

// NewEngine creates an asset engine with a no-op emitter.
func NewEngine(state State) *Engine {
	return &Engine{
		state:   state,
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
	e.emitter.Emit(assetEvent{evt: evt})
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now()
	}
	return e.nowFn()
}

func (e *Engine) load(ctx context.Context, id uuid.UUID) (*Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	a, err := e.state.AssetGet(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return a, nil
}

// Mint moves a PENDING asset into MINTED.
func (e *Engine) Mint(ctx context.Context, id uuid.UUID) (*Asset, error) {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	a, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(a.Status, StatusMinted); err != nil {
		return nil, err
	}
	if err := e.state.AssetApplyStatus(ctx, id, a.Status, StatusMinted); err != nil {
		return nil, err
	}
	a.Status = StatusMinted
	e.emit(NewMintedEvent(a))
	return a.Clone(), nil
}

// Burn retires the asset permanently. Burning is refused while any party holds
// custody of the asset.
func (e *Engine) Burn(ctx context.Context, id uuid.UUID) (*Asset, error) {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	a, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Locked {
		return nil, ErrAssetLocked
	}
	if err := ValidateTransition(a.Status, StatusBurned); err != nil {
		return nil, err
	}
	if err := e.state.AssetApplyStatus(ctx, id, a.Status, StatusBurned); err != nil {
		return nil, err
	}
	a.Status = StatusBurned
	e.emit(NewBurnedEvent(a))
	return a.Clone(), nil
}

// Lock places the asset into the LOCKED lifecycle state with the supplied
// custody reason. It requires the transition table to permit LOCKED and the
// custody flag to be clear.
func (e *Engine) Lock(ctx context.Context, id uuid.UUID, reason string, until *time.Time) (*Asset, error) {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	a, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Locked {
		return nil, ErrAssetLocked
	}
	if err := ValidateTransition(a.Status, StatusLocked); err != nil {
		return nil, err
	}
	if err := e.state.AssetApplyLock(ctx, id, a.Status, reason, until); err != nil {
		return nil, err
	}
	a.Status = StatusLocked
	a.Locked = true
	a.LockReason = reason
	a.LockedUntil = until
	e.emit(NewLockedEvent(a))
	return a.Clone(), nil
}

// Unlock returns a LOCKED asset to MINTED once LockedUntil has elapsed (or was
// never set) and clears the custody fields.
func (e *Engine) Unlock(ctx context.Context, id uuid.UUID) (*Asset, error) {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	a, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(a.Status, StatusMinted); err != nil {
		return nil, err
	}
	if a.LockedUntil != nil && e.now().Before(*a.LockedUntil) {
		return nil, ErrLockNotDue
	}
	if err := e.state.AssetApplyUnlock(ctx, id); err != nil {
		return nil, err
	}
	a.Status = StatusMinted
	a.Locked = false
	a.LockReason = ""
	a.LockedUntil = nil
	e.emit(NewUnlockedEvent(a))
	return a.Clone(), nil
}
