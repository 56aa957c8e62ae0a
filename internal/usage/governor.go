// Package usage meters summary generation against a daily free quota.
package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Store keys.
const (
	KeyPrefix    = "usage_"
	KeyIsPro     = "isPro"
	KeyProExpiry = "proExpiryDate"
)

// Unlimited is the Remaining value reported for Pro accounts.
const Unlimited = -1

// Defaults for Options.
const (
	DefaultDailyLimit    = 3
	DefaultRetentionDays = 30
)

const dayLayout = "2006-01-02"

// Messages carried in Decision.Message.
const (
	MsgProExpired = "Pro subscription expired"
	MsgLimitHit   = "Daily limit reached. Upgrade to Pro for unlimited summaries."
)

// Decision is the result of CheckAndConsume.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	IsPro     bool   `json:"is_pro"`
	Expired   bool   `json:"expired,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Status is a read-only view of today's usage.
type Status struct {
	Date      string     `json:"date"`
	Count     int        `json:"count"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	IsPro     bool       `json:"is_pro"`
	ProExpiry *time.Time `json:"pro_expiry,omitempty"`
	Expired   bool       `json:"expired,omitempty"`
}

// Options configures a Governor. Zero values take defaults.
type Options struct {
	DailyLimit    int
	RetentionDays int
	Now           func() time.Time
}

// Governor gates pipeline runs by a per-UTC-day counter.
// It holds no state of its own: everything lives in the Store.
//
// CheckAndConsume reads and then writes the counter without coordination, so
// two concurrent calls on the same day can both observe the same count and
// under-count usage. Callers trigger it one user action at a time.
type Governor struct {
	store     Store
	limit     int
	retention int
	now       func() time.Time
	log       *zap.Logger
}

// NewGovernor creates a Governor over store.
func NewGovernor(store Store, opts Options, log *zap.Logger) *Governor {
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = DefaultDailyLimit
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = DefaultRetentionDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Governor{
		store:     store,
		limit:     opts.DailyLimit,
		retention: opts.RetentionDays,
		now:       opts.Now,
		log:       log,
	}
}

// Limit returns the daily free quota.
func (g *Governor) Limit() int { return g.limit }

// DayKey returns the usage counter key for t's UTC calendar day.
func DayKey(t time.Time) string {
	return KeyPrefix + t.UTC().Format(dayLayout)
}

type account struct {
	isPro  bool
	expiry *time.Time
}

func (a account) expiredAt(now time.Time) bool {
	return a.isPro && a.expiry != nil && !now.Before(*a.expiry)
}

func (g *Governor) readAccount(ctx context.Context) (account, error) {
	var a account

	v, ok, err := g.store.Get(ctx, KeyIsPro)
	if err != nil {
		return a, fmt.Errorf("read %s: %w", KeyIsPro, err)
	}
	if ok {
		pro, perr := strconv.ParseBool(v)
		if perr != nil {
			g.log.Warn("usage: unreadable pro flag", zap.String("value", v))
		}
		a.isPro = pro
	}

	v, ok, err = g.store.Get(ctx, KeyProExpiry)
	if err != nil {
		return a, fmt.Errorf("read %s: %w", KeyProExpiry, err)
	}
	if ok && v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			g.log.Warn("usage: unreadable pro expiry", zap.String("value", v))
		} else {
			a.expiry = &t
		}
	}
	return a, nil
}

func (g *Governor) readCount(ctx context.Context, key string) (int, error) {
	v, ok, err := g.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return 0, nil
	}
	n, perr := strconv.Atoi(v)
	if perr != nil || n < 0 {
		g.log.Warn("usage: unreadable counter", zap.String("key", key), zap.String("value", v))
		return 0, nil
	}
	return n, nil
}

// CheckAndConsume decides whether one more pipeline run is allowed today and,
// on the quota branch, records it. The counter is incremented at most once per
// call and never on the Pro branch. An expired Pro account is demoted (and the
// demotion persisted) before evaluation.
func (g *Governor) CheckAndConsume(ctx context.Context) (Decision, error) {
	now := g.now()

	acct, err := g.readAccount(ctx)
	if err != nil {
		return Decision{}, err
	}

	expired := false
	if acct.expiredAt(now) {
		if err := g.demote(ctx); err != nil {
			return Decision{}, err
		}
		g.log.Info("usage: pro subscription expired", zap.Time("expiry", *acct.expiry))
		acct = account{}
		expired = true
	}

	if acct.isPro {
		return Decision{Allowed: true, Remaining: Unlimited, IsPro: true}, nil
	}

	key := DayKey(now)
	count, err := g.readCount(ctx, key)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Expired: expired}
	if expired {
		d.Message = MsgProExpired
	}

	if count < g.limit {
		if err := g.store.Set(ctx, key, strconv.Itoa(count+1)); err != nil {
			return Decision{}, fmt.Errorf("write %s: %w", key, err)
		}
		d.Allowed = true
		d.Remaining = max(0, g.limit-count-1)
		return d, nil
	}

	if d.Message == "" {
		d.Message = MsgLimitHit
	}
	return d, nil
}

// Status reports today's usage without consuming quota or demoting.
func (g *Governor) Status(ctx context.Context) (Status, error) {
	now := g.now()

	acct, err := g.readAccount(ctx)
	if err != nil {
		return Status{}, err
	}
	count, err := g.readCount(ctx, DayKey(now))
	if err != nil {
		return Status{}, err
	}

	st := Status{
		Date:      now.UTC().Format(dayLayout),
		Count:     count,
		Limit:     g.limit,
		ProExpiry: acct.expiry,
	}
	switch {
	case acct.expiredAt(now):
		st.Expired = true
		st.Remaining = max(0, g.limit-count)
	case acct.isPro:
		st.IsPro = true
		st.Remaining = Unlimited
	default:
		st.Remaining = max(0, g.limit-count)
	}
	return st, nil
}

// Upgrade marks the account Pro until expiry. A zero expiry never expires.
func (g *Governor) Upgrade(ctx context.Context, expiry time.Time) error {
	if err := g.store.Set(ctx, KeyIsPro, "true"); err != nil {
		return err
	}
	if expiry.IsZero() {
		return g.store.Delete(ctx, KeyProExpiry)
	}
	return g.store.Set(ctx, KeyProExpiry, expiry.UTC().Format(time.RFC3339))
}

// Downgrade clears the Pro flag and its expiry.
func (g *Governor) Downgrade(ctx context.Context) error {
	return g.demote(ctx)
}

func (g *Governor) demote(ctx context.Context) error {
	if err := g.store.Set(ctx, KeyIsPro, "false"); err != nil {
		return fmt.Errorf("write %s: %w", KeyIsPro, err)
	}
	if err := g.store.Delete(ctx, KeyProExpiry); err != nil {
		return fmt.Errorf("delete %s: %w", KeyProExpiry, err)
	}
	return nil
}

// Cleanup deletes usage counters for days older than the retention window and
// returns how many were removed. Keys that do not carry a date are left alone.
func (g *Governor) Cleanup(ctx context.Context) (int, error) {
	keys, err := g.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}

	today, _ := time.Parse(dayLayout, g.now().UTC().Format(dayLayout))
	cutoff := today.AddDate(0, 0, -g.retention)

	var stale []string
	for _, k := range keys {
		day, err := time.Parse(dayLayout, strings.TrimPrefix(k, KeyPrefix))
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			stale = append(stale, k)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := g.store.Delete(ctx, stale...); err != nil {
		return 0, err
	}
	g.log.Info("usage: cleaned up counters", zap.Int("deleted", len(stale)))
	return len(stale), nil
}
