package usage

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newTestGovernor(store Store, now time.Time) *Governor {
	return NewGovernor(store, Options{Now: func() time.Time { return now }}, nil)
}

func TestDayKey(t *testing.T) {
	// 23:30 in UTC-5 is already the next UTC day
	loc := time.FixedZone("EST", -5*3600)
	got := DayKey(time.Date(2026, 3, 14, 23, 30, 0, 0, loc))
	if got != "usage_2026-03-15" {
		t.Errorf("DayKey() = %q, want usage_2026-03-15", got)
	}
}

func TestCheckAndConsume_QuotaSequence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := newTestGovernor(store, fixedNow)

	for i, want := range []int{2, 1, 0} {
		d, err := g.CheckAndConsume(ctx)
		if err != nil {
			t.Fatalf("call %d: CheckAndConsume() error = %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("call %d: Allowed = false, want true", i+1)
		}
		if d.Remaining != want {
			t.Errorf("call %d: Remaining = %d, want %d", i+1, d.Remaining, want)
		}
		if d.IsPro {
			t.Errorf("call %d: IsPro = true, want false", i+1)
		}
	}

	d, err := g.CheckAndConsume(ctx)
	if err != nil {
		t.Fatalf("CheckAndConsume() error = %v", err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Errorf("fourth call = %+v, want denied with remaining 0", d)
	}
	if d.Message != MsgLimitHit {
		t.Errorf("Message = %q, want %q", d.Message, MsgLimitHit)
	}

	v, _, _ := store.Get(ctx, DayKey(fixedNow))
	if v != "3" {
		t.Errorf("stored count = %q, want 3 (denied call must not increment)", v)
	}
}

func TestCheckAndConsume_NewDayStartsAtZero(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Set(ctx, DayKey(fixedNow), "3")

	d, err := newTestGovernor(store, fixedNow.AddDate(0, 0, 1)).CheckAndConsume(ctx)
	if err != nil {
		t.Fatalf("CheckAndConsume() error = %v", err)
	}
	if !d.Allowed || d.Remaining != 2 {
		t.Errorf("next day = %+v, want allowed with remaining 2", d)
	}
}

func TestCheckAndConsume_ProDoesNotTouchCounter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := newTestGovernor(store, fixedNow)
	if err := g.Upgrade(ctx, fixedNow.Add(24*time.Hour)); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		d, err := g.CheckAndConsume(ctx)
		if err != nil {
			t.Fatalf("CheckAndConsume() error = %v", err)
		}
		if !d.Allowed || !d.IsPro || d.Remaining != Unlimited {
			t.Fatalf("pro call %d = %+v, want allowed unlimited", i+1, d)
		}
	}
	if _, ok, _ := store.Get(ctx, DayKey(fixedNow)); ok {
		t.Error("pro calls must not write the daily counter")
	}
}

func TestCheckAndConsume_LifetimePro(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Set(ctx, KeyIsPro, "true")

	d, err := newTestGovernor(store, fixedNow).CheckAndConsume(ctx)
	if err != nil {
		t.Fatalf("CheckAndConsume() error = %v", err)
	}
	if !d.IsPro || d.Remaining != Unlimited {
		t.Errorf("Decision = %+v, want pro unlimited", d)
	}
}

func TestCheckAndConsume_ExpiredProDemotedSameCall(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Set(ctx, KeyIsPro, "true")
	store.Set(ctx, KeyProExpiry, fixedNow.Add(-time.Hour).Format(time.RFC3339))
	store.Set(ctx, DayKey(fixedNow), "1")

	d, err := newTestGovernor(store, fixedNow).CheckAndConsume(ctx)
	if err != nil {
		t.Fatalf("CheckAndConsume() error = %v", err)
	}
	if d.IsPro {
		t.Error("IsPro = true, want false after expiry")
	}
	if !d.Expired || d.Message != MsgProExpired {
		t.Errorf("Expired = %v, Message = %q, want expiry noted", d.Expired, d.Message)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Errorf("Decision = %+v, want allowed with remaining 1 (evaluated against counter)", d)
	}

	if v, _, _ := store.Get(ctx, KeyIsPro); v != "false" {
		t.Errorf("isPro = %q, want false persisted", v)
	}
	if _, ok, _ := store.Get(ctx, KeyProExpiry); ok {
		t.Error("proExpiryDate should be removed on demotion")
	}
	if v, _, _ := store.Get(ctx, DayKey(fixedNow)); v != "2" {
		t.Errorf("count = %q, want 2", v)
	}
}

func TestCheckAndConsume_ExpiredProOverQuota(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Set(ctx, KeyIsPro, "true")
	store.Set(ctx, KeyProExpiry, fixedNow.Format(time.RFC3339))
	store.Set(ctx, DayKey(fixedNow), "3")

	d, err := newTestGovernor(store, fixedNow).CheckAndConsume(ctx)
	if err != nil {
		t.Fatalf("CheckAndConsume() error = %v", err)
	}
	if d.Allowed || !d.Expired || d.Message != MsgProExpired {
		t.Errorf("Decision = %+v, want denied with expiry message", d)
	}
}

func TestCheckAndConsume_CustomLimit(t *testing.T) {
	g := NewGovernor(NewMemoryStore(), Options{DailyLimit: 1, Now: func() time.Time { return fixedNow }}, nil)

	d1, _ := g.CheckAndConsume(context.Background())
	d2, _ := g.CheckAndConsume(context.Background())
	if !d1.Allowed || d1.Remaining != 0 {
		t.Errorf("first = %+v", d1)
	}
	if d2.Allowed {
		t.Errorf("second = %+v, want denied", d2)
	}
}

func TestCheckAndConsume_UnreadableCounterTreatedAsZero(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Set(ctx, DayKey(fixedNow), "garbage")

	d, err := newTestGovernor(store, fixedNow).CheckAndConsume(ctx)
	if err != nil {
		t.Fatalf("CheckAndConsume() error = %v", err)
	}
	if !d.Allowed || d.Remaining != 2 {
		t.Errorf("Decision = %+v, want allowed with remaining 2", d)
	}
}

// barrierStore holds every reader of a usage counter until n readers have
// read it, forcing concurrent calls to observe the same count.
type barrierStore struct {
	*MemoryStore
	wg sync.WaitGroup
}

func (b *barrierStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := b.MemoryStore.Get(ctx, key)
	if strings.HasPrefix(key, KeyPrefix) {
		b.wg.Done()
		b.wg.Wait()
	}
	return v, ok, err
}

// Concurrent calls are not coordinated: both read count=2, both are allowed,
// and both write 3. Usage is under-counted by one.
func TestCheckAndConsume_ConcurrentCallsUndercount(t *testing.T) {
	ctx := context.Background()
	store := &barrierStore{MemoryStore: NewMemoryStore()}
	store.MemoryStore.Set(ctx, DayKey(fixedNow), "2")
	store.wg.Add(2)

	g := newTestGovernor(store, fixedNow)

	var (
		wg        sync.WaitGroup
		decisions [2]Decision
		errs      [2]error
	)
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i], errs[i] = g.CheckAndConsume(ctx)
		}(i)
	}
	wg.Wait()

	for i := range 2 {
		if errs[i] != nil {
			t.Fatalf("call %d error = %v", i, errs[i])
		}
		if !decisions[i].Allowed {
			t.Errorf("call %d Allowed = false; both racers read count=2", i)
		}
	}
	v, _, _ := store.MemoryStore.Get(ctx, DayKey(fixedNow))
	if v != "3" {
		t.Errorf("final count = %q, want 3 (last write wins)", v)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Set(ctx, DayKey(fixedNow), "2")
	g := newTestGovernor(store, fixedNow)

	st, err := g.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Date != "2026-03-14" || st.Count != 2 || st.Limit != 3 || st.Remaining != 1 || st.IsPro {
		t.Errorf("Status() = %+v", st)
	}

	// Status never consumes
	if v, _, _ := store.Get(ctx, DayKey(fixedNow)); v != "2" {
		t.Errorf("count = %q after Status, want 2", v)
	}
}

func TestStatus_ExpiredProNotDemoted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := newTestGovernor(store, fixedNow)
	g.Upgrade(ctx, fixedNow.Add(-time.Minute))

	st, err := g.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.IsPro || !st.Expired || st.Remaining != 3 {
		t.Errorf("Status() = %+v, want expired non-pro view", st)
	}
	if v, _, _ := store.Get(ctx, KeyIsPro); v != "true" {
		t.Errorf("isPro = %q, Status must stay read-only", v)
	}
}

func TestUpgradeAndDowngrade(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := newTestGovernor(store, fixedNow)

	expiry := fixedNow.Add(30 * 24 * time.Hour)
	if err := g.Upgrade(ctx, expiry); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}
	st, _ := g.Status(ctx)
	if !st.IsPro || st.ProExpiry == nil || !st.ProExpiry.Equal(expiry) {
		t.Errorf("after Upgrade Status() = %+v", st)
	}

	if err := g.Downgrade(ctx); err != nil {
		t.Fatalf("Downgrade() error = %v", err)
	}
	st, _ = g.Status(ctx)
	if st.IsPro || st.ProExpiry != nil {
		t.Errorf("after Downgrade Status() = %+v", st)
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	keep := []string{
		DayKey(fixedNow),
		DayKey(fixedNow.AddDate(0, 0, -30)),
		"usage_not-a-date",
		KeyIsPro,
	}
	drop := []string{
		DayKey(fixedNow.AddDate(0, 0, -31)),
		DayKey(fixedNow.AddDate(-1, 0, 0)),
	}
	for _, k := range append(append([]string{}, keep...), drop...) {
		store.Set(ctx, k, "1")
	}

	n, err := newTestGovernor(store, fixedNow).Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if n != len(drop) {
		t.Errorf("Cleanup() = %d, want %d", n, len(drop))
	}
	for _, k := range keep {
		if _, ok, _ := store.Get(ctx, k); !ok {
			t.Errorf("key %q should be kept", k)
		}
	}
	for _, k := range drop {
		if _, ok, _ := store.Get(ctx, k); ok {
			t.Errorf("key %q should be deleted", k)
		}
	}
}
