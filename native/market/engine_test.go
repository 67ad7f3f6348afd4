package market_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"nftmarket/native/asset"
	"nftmarket/native/common"
	"nftmarket/native/escrow"
	"nftmarket/native/fees"
	"nftmarket/native/market"
	"nftmarket/storage"
)

const (
	testChain    = "zilliqa"
	testCurrency = "ZUSDT"
)

type chainPolicy struct{}

func (chainPolicy) SupportedCurrency(chain, currency string) bool {
	return currency == testCurrency || currency == "ZIL"
}

func (chainPolicy) IsStableCurrency(chain, currency string) bool {
	return currency == testCurrency
}

func (chainPolicy) StablePriceBounds(chain string) (*big.Int, *big.Int, bool) {
	return big.NewInt(100), big.NewInt(1_000_000), true
}

type platformCfg struct{}

func (platformCfg) CommissionBps() uint32                    { return 200 }
func (platformCfg) ChainFamily(string) (string, bool)        { return "", false }
func (platformCfg) CustodyAddress(string) (string, bool)     { return "", false }
func (platformCfg) SigningKey(string) (string, bool)         { return "", false }
func (platformCfg) StableAsset(string) (string, string, bool) { return "", "", false }
func (platformCfg) PayoutFailurePolicy() string              { return escrow.PayoutFailureRelease }

type env struct {
	store  *storage.Store
	engine *market.Engine
	seller uuid.UUID
	buyer  uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := storage.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := storage.New(db)
	escrowEngine := escrow.NewEngine(store, nil, platformCfg{})
	engine := market.NewEngine(store, escrowEngine, chainPolicy{}, fees.Policy{})
	return &env{store: store, engine: engine, seller: uuid.New(), buyer: uuid.New()}
}

func (e *env) seedMinted(t *testing.T) *asset.Asset {
	t.Helper()
	a := &asset.Asset{
		ID:           uuid.New(),
		TokenID:      uuid.NewString(),
		OwnerID:      e.seller,
		OwnerAddress: "0xseller",
		Status:       asset.StatusMinted,
		RoyaltyBps:   1000,
	}
	if err := e.store.AssetPut(context.Background(), a); err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return a
}

func (e *env) list(t *testing.T, a *asset.Asset, price int64) *market.Listing {
	t.Helper()
	listing, err := e.engine.CreateListing(context.Background(), market.CreateListingInput{
		AssetID:       a.ID,
		SellerID:      e.seller,
		SellerAddress: "0xseller",
		Price:         big.NewInt(price),
		Currency:      testCurrency,
		Chain:         testChain,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return listing
}

func (e *env) offer(t *testing.T, listing *market.Listing, price int64) *market.Offer {
	t.Helper()
	offer, err := e.engine.MakeOffer(context.Background(), market.MakeOfferInput{
		ListingID:    listing.ID,
		BuyerID:      e.buyer,
		BuyerAddress: "0xbuyer",
		Price:        big.NewInt(price),
		Currency:     testCurrency,
	})
	if err != nil {
		t.Fatalf("make offer: %v", err)
	}
	return offer
}

func TestCreateListingTakesCustody(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	listing := e.list(t, a, 10_000)

	if listing.Status != market.ListingActive {
		t.Fatalf("status: %s", listing.Status)
	}
	stored, err := e.store.AssetGet(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if !stored.Locked || stored.LockReason != asset.LockReasonMarketplace {
		t.Fatalf("custody not taken: %+v", stored)
	}
	if stored.Status != asset.StatusMinted {
		t.Fatalf("custody must not touch lifecycle status, got %s", stored.Status)
	}
}

func TestCreateListingRejections(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	ctx := context.Background()
	base := market.CreateListingInput{
		AssetID:  a.ID,
		SellerID: e.seller,
		Price:    big.NewInt(10_000),
		Currency: testCurrency,
		Chain:    testChain,
	}

	in := base
	in.Price = big.NewInt(0)
	if _, err := e.engine.CreateListing(ctx, in); !errors.Is(err, market.ErrPriceNotPositive) {
		t.Fatalf("zero price: got %v", err)
	}
	in = base
	in.Currency = "DOGE"
	if _, err := e.engine.CreateListing(ctx, in); !errors.Is(err, market.ErrCurrencyNotSupported) {
		t.Fatalf("unsupported currency: got %v", err)
	}
	in = base
	in.Price = big.NewInt(50)
	if _, err := e.engine.CreateListing(ctx, in); !errors.Is(err, market.ErrPriceOutOfBounds) {
		t.Fatalf("price below floor: got %v", err)
	}
	in = base
	in.SellerID = uuid.New()
	if _, err := e.engine.CreateListing(ctx, in); !errors.Is(err, market.ErrNotOwner) {
		t.Fatalf("not owner: got %v", err)
	}

	e.list(t, a, 10_000)
	if _, err := e.engine.CreateListing(ctx, base); err == nil {
		t.Fatal("second listing for a custodied asset must fail")
	}

	pending := &asset.Asset{ID: uuid.New(), TokenID: uuid.NewString(), OwnerID: e.seller, Status: asset.StatusPending}
	if err := e.store.AssetPut(ctx, pending); err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	in = base
	in.AssetID = pending.ID
	if _, err := e.engine.CreateListing(ctx, in); !errors.Is(err, market.ErrAssetNotMinted) {
		t.Fatalf("unminted asset: got %v", err)
	}
}

func TestCancelListingReleasesCustody(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	listing := e.list(t, a, 10_000)
	ctx := context.Background()

	if _, err := e.engine.CancelListing(ctx, listing.ID, e.buyer); !errors.Is(err, market.ErrNotSeller) {
		t.Fatalf("cancel by stranger: got %v", err)
	}
	cancelled, err := e.engine.CancelListing(ctx, listing.ID, e.seller)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != market.ListingCancelled {
		t.Fatalf("status: %s", cancelled.Status)
	}
	stored, err := e.store.AssetGet(ctx, a.ID)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if stored.Locked {
		t.Fatal("custody not released")
	}
	if _, err := e.engine.CancelListing(ctx, listing.ID, e.seller); !errors.Is(err, market.ErrListingNotActive) {
		t.Fatalf("double cancel: got %v", err)
	}
}

func TestMakeOfferOpensPendingEscrow(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	listing := e.list(t, a, 10_000)
	offer := e.offer(t, listing, 9_000)

	if offer.Status != market.OfferPending {
		t.Fatalf("status: %s", offer.Status)
	}
	esc, err := e.store.EscrowForOffer(context.Background(), offer.ID)
	if err != nil {
		t.Fatalf("escrow for offer: %v", err)
	}
	if esc.Status != escrow.StatusPending {
		t.Fatalf("escrow status: %s", esc.Status)
	}
	if esc.Amount.BigInt().Int64() != 9_000 {
		t.Fatalf("escrow amount: %s", esc.Amount)
	}
	// Commission fixed at creation from the configured 2%.
	if esc.CommissionAmount.BigInt().Int64() != 180 {
		t.Fatalf("escrow commission: %s", esc.CommissionAmount)
	}
}

func TestMakeOfferRejections(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	listing := e.list(t, a, 10_000)
	ctx := context.Background()

	if _, err := e.engine.MakeOffer(ctx, market.MakeOfferInput{ListingID: listing.ID, BuyerID: e.seller, Price: big.NewInt(1_000), Currency: testCurrency}); !errors.Is(err, market.ErrSelfTrade) {
		t.Fatalf("self trade: got %v", err)
	}
	if _, err := e.engine.MakeOffer(ctx, market.MakeOfferInput{ListingID: listing.ID, BuyerID: e.buyer, Price: big.NewInt(-1), Currency: testCurrency}); !errors.Is(err, market.ErrPriceNotPositive) {
		t.Fatalf("negative price: got %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	stale, err := e.engine.CreateListing(ctx, market.CreateListingInput{
		AssetID:       e.seedMintedOwned(t, e.seller).ID,
		SellerID:      e.seller,
		SellerAddress: "0xseller",
		Price:         big.NewInt(10_000),
		Currency:      testCurrency,
		Chain:         testChain,
		ExpiresAt:     &past,
	})
	if err != nil {
		t.Fatalf("create stale listing: %v", err)
	}
	if _, err := e.engine.MakeOffer(ctx, market.MakeOfferInput{ListingID: stale.ID, BuyerID: e.buyer, Price: big.NewInt(1_000), Currency: testCurrency}); !errors.Is(err, market.ErrListingExpired) {
		t.Fatalf("expired listing: got %v", err)
	}
}

// seedMintedOwned seeds a minted asset for an arbitrary owner.
func (e *env) seedMintedOwned(t *testing.T, owner uuid.UUID) *asset.Asset {
	t.Helper()
	a := &asset.Asset{
		ID:           uuid.New(),
		TokenID:      uuid.NewString(),
		OwnerID:      owner,
		OwnerAddress: "0xother",
		Status:       asset.StatusMinted,
	}
	if err := e.store.AssetPut(context.Background(), a); err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return a
}

func TestOfferAuthz(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	listing := e.list(t, a, 10_000)
	ctx := context.Background()

	offer := e.offer(t, listing, 9_000)
	if _, err := e.engine.RejectOffer(ctx, offer.ID, e.buyer); !errors.Is(err, market.ErrNotSeller) {
		t.Fatalf("reject by buyer: got %v", err)
	}
	rejected, err := e.engine.RejectOffer(ctx, offer.ID, e.seller)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != market.OfferRejected {
		t.Fatalf("status: %s", rejected.Status)
	}
	if _, err := e.engine.CancelOffer(ctx, offer.ID, e.buyer); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("cancel closed offer: got %v", err)
	}

	second := e.offer(t, listing, 8_000)
	if _, err := e.engine.CancelOffer(ctx, second.ID, e.seller); !errors.Is(err, market.ErrNotBuyer) {
		t.Fatalf("cancel by seller: got %v", err)
	}
	cancelled, err := e.engine.CancelOffer(ctx, second.ID, e.buyer)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != market.OfferCancelled {
		t.Fatalf("status: %s", cancelled.Status)
	}
}

func TestAcceptOfferSettles(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	listing := e.list(t, a, 10_000)
	offer := e.offer(t, listing, 10_000)
	ctx := context.Background()

	if _, err := e.engine.AcceptOffer(ctx, offer.ID, e.buyer, "0xsettle"); !errors.Is(err, market.ErrNotSeller) {
		t.Fatalf("accept by stranger: got %v", err)
	}
	order, err := e.engine.AcceptOffer(ctx, offer.ID, e.seller, "0xsettle")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if order.Status != market.OrderConfirmed {
		t.Fatalf("order status: %s", order.Status)
	}
	// 10% royalty and the fixed 2.5% platform fee on a 10_000 sale.
	if order.RoyaltyAmount.BigInt().Int64() != 1_000 {
		t.Fatalf("royalty: %s", order.RoyaltyAmount)
	}
	if order.PlatformFee.BigInt().Int64() != 250 {
		t.Fatalf("platform fee: %s", order.PlatformFee)
	}
	if order.OfferID == nil || *order.OfferID != offer.ID {
		t.Fatalf("offer ref missing: %v", order.OfferID)
	}

	stored, err := e.store.AssetGet(ctx, a.ID)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if stored.Status != asset.StatusTransferred || stored.OwnerID != e.buyer || stored.Locked {
		t.Fatalf("asset not transferred: %+v", stored)
	}
	updatedListing, err := e.store.ListingGet(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if updatedListing.Status != market.ListingAccepted {
		t.Fatalf("listing status: %s", updatedListing.Status)
	}

	if _, err := e.engine.AcceptOffer(ctx, offer.ID, e.seller, "0xsettle"); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("double accept: got %v", err)
	}
}

func TestBuyNowSettles(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	listing := e.list(t, a, 10_000)
	ctx := context.Background()

	if _, err := e.engine.BuyNow(ctx, listing.ID, e.seller, "0xseller", "0xbuy"); !errors.Is(err, market.ErrSelfTrade) {
		t.Fatalf("self buy: got %v", err)
	}
	order, err := e.engine.BuyNow(ctx, listing.ID, e.buyer, "0xbuyer", "0xbuy")
	if err != nil {
		t.Fatalf("buy now: %v", err)
	}
	if order.Status != market.OrderCompleted || order.CompletedAt == nil {
		t.Fatalf("order not completed: %+v", order)
	}
	stored, err := e.store.AssetGet(ctx, a.ID)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if stored.Status != asset.StatusTransferred || stored.OwnerID != e.buyer || stored.Locked {
		t.Fatalf("asset not transferred: %+v", stored)
	}

	esc, err := e.store.EscrowForOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get escrow: %v", err)
	}
	if esc.Status != escrow.StatusHeld {
		t.Fatalf("escrow status: %s", esc.Status)
	}
	if esc.Amount.BigInt().Int64() != 10_000 {
		t.Fatalf("escrow amount: %s", esc.Amount)
	}

	if _, err := e.engine.BuyNow(ctx, listing.ID, e.buyer, "0xbuyer", "0xbuy"); !errors.Is(err, market.ErrListingNotActive) {
		t.Fatalf("double buy: got %v", err)
	}
}

// escrowWriteFailState simulates a ledger write failure inside the settlement
// transaction so rollback behaviour can be observed.
type escrowWriteFailState struct {
	market.State
	err error
}

func (f *escrowWriteFailState) EscrowPut(ctx context.Context, e *escrow.Escrow) error {
	return f.err
}

func (f *escrowWriteFailState) Transaction(ctx context.Context, fn func(market.State) error) error {
	return f.State.Transaction(ctx, func(tx market.State) error {
		return fn(&escrowWriteFailState{State: tx, err: f.err})
	})
}

func TestMakeOfferRollsBackWithEscrow(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	listing := e.list(t, a, 10_000)
	ctx := context.Background()

	failing := &escrowWriteFailState{State: e.store, err: errors.New("disk full")}
	engine := market.NewEngine(failing, escrow.NewEngine(e.store, nil, platformCfg{}), chainPolicy{}, fees.Policy{})

	expiry := time.Now().UTC().Add(time.Hour)
	if _, err := engine.MakeOffer(ctx, market.MakeOfferInput{
		ListingID:    listing.ID,
		BuyerID:      e.buyer,
		BuyerAddress: "0xbuyer",
		Price:        big.NewInt(9_000),
		Currency:     testCurrency,
		ExpiresAt:    &expiry,
	}); err == nil {
		t.Fatal("escrow write failure must fail the offer")
	}
	// A committed offer would surface here; the rollback leaves none behind.
	due, err := e.store.OffersDueForExpiry(ctx, expiry.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("offers due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("offer committed without its escrow: %d", len(due))
	}
}

func TestBuyNowRollsBackWithEscrow(t *testing.T) {
	e := newEnv(t)
	a := e.seedMinted(t)
	listing := e.list(t, a, 10_000)
	ctx := context.Background()

	failing := &escrowWriteFailState{State: e.store, err: errors.New("disk full")}
	engine := market.NewEngine(failing, escrow.NewEngine(e.store, nil, platformCfg{}), chainPolicy{}, fees.Policy{})

	if _, err := engine.BuyNow(ctx, listing.ID, e.buyer, "0xbuyer", "0xbuy"); err == nil {
		t.Fatal("escrow write failure must fail the trade")
	}
	stored, err := e.store.ListingGet(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if stored.Status != market.ListingActive {
		t.Fatalf("listing must stay active after rollback, got %s", stored.Status)
	}
	storedAsset, err := e.store.AssetGet(ctx, a.ID)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if storedAsset.OwnerID != e.seller || storedAsset.Status != asset.StatusMinted || !storedAsset.Locked {
		t.Fatalf("trade committed without its escrow: %+v", storedAsset)
	}
}

// counterValue reads a labelled counter from the default registry so tests can
// assert deltas without touching registry internals.
func counterValue(t *testing.T, name, label, value string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSettlementRecordsMetrics(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	buyBefore := counterValue(t, "market_orders_settled_total", "path", "buy_now")
	listing := e.list(t, e.seedMinted(t), 10_000)
	if _, err := e.engine.BuyNow(ctx, listing.ID, e.buyer, "0xbuyer", "0xbuy"); err != nil {
		t.Fatalf("buy now: %v", err)
	}
	if got := counterValue(t, "market_orders_settled_total", "path", "buy_now"); got != buyBefore+1 {
		t.Fatalf("buy_now not counted: before=%v after=%v", buyBefore, got)
	}

	acceptBefore := counterValue(t, "market_orders_settled_total", "path", "accept_offer")
	second := e.list(t, e.seedMintedOwned(t, e.seller), 10_000)
	offer := e.offer(t, second, 9_000)
	if _, err := e.engine.AcceptOffer(ctx, offer.ID, e.seller, "0xsettle"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got := counterValue(t, "market_orders_settled_total", "path", "accept_offer"); got != acceptBefore+1 {
		t.Fatalf("accept_offer not counted: before=%v after=%v", acceptBefore, got)
	}
}

func TestSweeperExpires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	a := e.seedMinted(t)
	listing, err := e.engine.CreateListing(ctx, market.CreateListingInput{
		AssetID:       a.ID,
		SellerID:      e.seller,
		SellerAddress: "0xseller",
		Price:         big.NewInt(10_000),
		Currency:      testCurrency,
		Chain:         testChain,
		ExpiresAt:     &past,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	freshAsset := e.seedMintedOwned(t, e.seller)
	fresh := e.list(t, freshAsset, 10_000)
	offer, err := e.engine.MakeOffer(ctx, market.MakeOfferInput{
		ListingID:    fresh.ID,
		BuyerID:      e.buyer,
		BuyerAddress: "0xbuyer",
		Price:        big.NewInt(9_000),
		Currency:     testCurrency,
		ExpiresAt:    &past,
	})
	if err != nil {
		t.Fatalf("make offer: %v", err)
	}

	sweeper := market.NewSweeper(market.SweeperConfig{Engine: e.engine})
	if err := sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	expired, err := e.store.ListingGet(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if expired.Status != market.ListingExpired {
		t.Fatalf("listing status: %s", expired.Status)
	}
	storedAsset, err := e.store.AssetGet(ctx, a.ID)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if storedAsset.Locked {
		t.Fatal("expired listing must release custody")
	}

	expiredOffer, err := e.store.OfferGet(ctx, offer.ID)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if expiredOffer.Status != market.OfferExpired {
		t.Fatalf("offer status: %s", expiredOffer.Status)
	}
	still, err := e.store.ListingGet(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("get fresh listing: %v", err)
	}
	if still.Status != market.ListingActive {
		t.Fatalf("unexpired listing touched: %s", still.Status)
	}
}
