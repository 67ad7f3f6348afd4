package asset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"nftmarket/native/common"
)

type memState struct {
	assets map[uuid.UUID]*Asset
}

func newMemState() *memState {
	return &memState{assets: make(map[uuid.UUID]*Asset)}
}

func (m *memState) AssetGet(ctx context.Context, id uuid.UUID) (*Asset, error) {
	a, ok := m.assets[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *memState) AssetPut(ctx context.Context, a *Asset) error {
	m.assets[a.ID] = a.Clone()
	return nil
}

func (m *memState) AssetApplyLock(ctx context.Context, id uuid.UUID, from Status, reason string, until *time.Time) error {
	a, ok := m.assets[id]
	if !ok || a.Status != from || a.Locked {
		return common.ErrConflict
	}
	a.Status = StatusLocked
	a.Locked = true
	a.LockReason = reason
	a.LockedUntil = until
	return nil
}

func (m *memState) AssetApplyUnlock(ctx context.Context, id uuid.UUID) error {
	a, ok := m.assets[id]
	if !ok || a.Status != StatusLocked || !a.Locked {
		return common.ErrConflict
	}
	a.Status = StatusMinted
	a.Locked = false
	a.LockReason = ""
	a.LockedUntil = nil
	return nil
}

func (m *memState) AssetApplyStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	a, ok := m.assets[id]
	if !ok || a.Status != from {
		return common.ErrConflict
	}
	a.Status = to
	return nil
}

func (m *memState) AssetMarkCustody(ctx context.Context, id uuid.UUID, reason string) error {
	a, ok := m.assets[id]
	if !ok || a.Locked {
		return common.ErrConflict
	}
	a.Locked = true
	a.LockReason = reason
	return nil
}

func (m *memState) AssetReleaseCustody(ctx context.Context, id uuid.UUID, reason string) error {
	a, ok := m.assets[id]
	if !ok || !a.Locked || a.LockReason != reason {
		return common.ErrConflict
	}
	a.Locked = false
	a.LockReason = ""
	a.LockedUntil = nil
	return nil
}

func (m *memState) AssetApplyTransfer(ctx context.Context, id uuid.UUID, from Status, ownerID uuid.UUID, ownerAddress string) error {
	a, ok := m.assets[id]
	if !ok || a.Status != from {
		return common.ErrConflict
	}
	a.Status = StatusTransferred
	a.OwnerID = ownerID
	a.OwnerAddress = ownerAddress
	a.Locked = false
	a.LockReason = ""
	a.LockedUntil = nil
	return nil
}

func seed(t *testing.T, state *memState, status Status) *Asset {
	t.Helper()
	a := &Asset{
		ID:      uuid.New(),
		TokenID: uuid.NewString(),
		OwnerID: uuid.New(),
		Status:  status,
	}
	if err := state.AssetPut(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

func TestMintFromPending(t *testing.T) {
	state := newMemState()
	engine := NewEngine(state)
	a := seed(t, state, StatusPending)

	minted, err := engine.Mint(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if minted.Status != StatusMinted {
		t.Fatalf("status: got %s", minted.Status)
	}
	if _, err := engine.Mint(context.Background(), a.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("double mint: want invalid state, got %v", err)
	}
}

func TestBurnRefusedWhileLocked(t *testing.T) {
	state := newMemState()
	engine := NewEngine(state)
	a := seed(t, state, StatusMinted)

	if _, err := engine.Lock(context.Background(), a.ID, "compliance", nil); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := engine.Burn(context.Background(), a.ID); !errors.Is(err, ErrAssetLocked) {
		t.Fatalf("burn while locked: want ErrAssetLocked, got %v", err)
	}
	if _, err := engine.Unlock(context.Background(), a.ID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	burned, err := engine.Burn(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if burned.Status != StatusBurned {
		t.Fatalf("status: got %s", burned.Status)
	}
}

func TestLockUnlockRoundTrip(t *testing.T) {
	state := newMemState()
	engine := NewEngine(state)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine.SetNowFunc(func() time.Time { return now })
	a := seed(t, state, StatusMinted)

	until := now.Add(time.Hour)
	locked, err := engine.Lock(context.Background(), a.ID, "compliance", &until)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if locked.Status != StatusLocked || !locked.Locked || locked.LockReason != "compliance" {
		t.Fatalf("lock not applied: %+v", locked)
	}
	if _, err := engine.Lock(context.Background(), a.ID, "again", nil); !errors.Is(err, ErrAssetLocked) {
		t.Fatalf("double lock: want ErrAssetLocked, got %v", err)
	}

	if _, err := engine.Unlock(context.Background(), a.ID); !errors.Is(err, ErrLockNotDue) {
		t.Fatalf("early unlock: want ErrLockNotDue, got %v", err)
	}
	engine.SetNowFunc(func() time.Time { return until })
	unlocked, err := engine.Unlock(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if unlocked.Status != StatusMinted || unlocked.Locked || unlocked.LockedUntil != nil {
		t.Fatalf("unlock not applied: %+v", unlocked)
	}
}

func TestEnginePaused(t *testing.T) {
	state := newMemState()
	engine := NewEngine(state)
	engine.SetPauses(pausedModules{"asset"})
	a := seed(t, state, StatusPending)

	if _, err := engine.Mint(context.Background(), a.ID); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("paused mint: want ErrModulePaused, got %v", err)
	}
}

type pausedModules []string

func (p pausedModules) IsPaused(module string) bool {
	for _, m := range p {
		if m == module {
			return true
		}
	}
	return false
}
