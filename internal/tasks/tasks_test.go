package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cfd24/hoyolab-auto/internal/config"
	"github.com/cfd24/hoyolab-auto/internal/cron"
	"github.com/cfd24/hoyolab-auto/internal/hoyolab"
	"github.com/cfd24/hoyolab-auto/internal/logger"
	"github.com/cfd24/hoyolab-auto/internal/platform"
)

type fakeAccount struct {
	id       string
	game     hoyolab.Game
	noNotify bool

	checkIn    hoyolab.CheckInResult
	checkInErr error
	signInfo   hoyolab.SignInfo
	notes      hoyolab.Notes
	notesErr   error
	redeemErr  map[string]error
	verifyErr  error

	mu       sync.Mutex
	checkIns int
	redeemed []string
}

func newFakeAccount(id, tag string) *fakeAccount {
	game, _ := hoyolab.LookupGame(tag)
	return &fakeAccount{id: id, game: game}
}

func (f *fakeAccount) ID() string          { return f.id }
func (f *fakeAccount) Game() hoyolab.Game  { return f.game }
func (f *fakeAccount) Role() hoyolab.Role  { return hoyolab.Role{UID: strings.TrimPrefix(f.id, f.game.Tag+":"), Nickname: "Traveler"} }
func (f *fakeAccount) NotifyEnabled() bool { return !f.noNotify }

func (f *fakeAccount) CheckIn(context.Context) (hoyolab.CheckInResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkIns++
	return f.checkIn, f.checkInErr
}

func (f *fakeAccount) SignInfo(context.Context) (hoyolab.SignInfo, error) { return f.signInfo, nil }

func (f *fakeAccount) Notes(context.Context) (hoyolab.Notes, error) {
	if !f.game.Supports(hoyolab.CapNotes) {
		return hoyolab.Notes{}, hoyolab.ErrUnsupported
	}
	return f.notes, f.notesErr
}

func (f *fakeAccount) Redeem(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeemed = append(f.redeemed, code)
	return f.redeemErr[code]
}

func (f *fakeAccount) Verify(context.Context) error { return f.verifyErr }

type fakeNotifier struct {
	mu       sync.Mutex
	msgs     []platform.Message
	failures int
	attempts int
}

func (n *fakeNotifier) Notify(_ context.Context, msg platform.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts++
	if n.failures > 0 {
		n.failures--
		return errors.New("telegram 502")
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type memoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	sent     map[string]time.Time
	redeemed map[string]bool
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{now: now, sent: map[string]time.Time{}, redeemed: map[string]bool{}}
}

func (s *memoryStore) ShouldNotify(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.sent[key]; ok && s.now().Sub(at) < ttl {
		return false, nil
	}
	s.sent[key] = s.now()
	return true, nil
}

func (s *memoryStore) ReleaseNotification(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sent, key)
	return nil
}

func (s *memoryStore) IsCodeRedeemed(_ context.Context, account, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redeemed[account+"/"+code], nil
}

func (s *memoryStore) MarkCodeRedeemed(_ context.Context, account, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redeemed[account+"/"+code] = true
	return nil
}

type fixture struct {
	deps     Deps
	notifier *fakeNotifier
	store    *memoryStore
	now      time.Time
}

func newFixture(accounts ...Account) *fixture {
	f := &fixture{notifier: &fakeNotifier{}, now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	f.store = newMemoryStore(clock)
	f.deps = Deps{
		Logger:   logger.Discard(),
		Config:   &config.Config{},
		Accounts: accounts,
		Notifier: f.notifier,
		Store:    f.store,
		Now:      clock,
	}.withDefaults()
	return f
}

func TestDefinitionsOrderAndSchedules(t *testing.T) {
	t.Parallel()

	defs := Definitions(Deps{})
	want := []string{
		"checkIn", "codeRedeem", "dailiesReminder", "expedition", "howlScratchCard",
		"missedCheckIn", "realmCurrency", "shopStatus", "stamina", "updateCookie", "weekliesReminder",
	}
	if len(defs) != len(want) {
		t.Fatalf("Definitions() = %d tasks, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if d.Name() != want[i] {
			t.Errorf("definition %d = %s, want %s", i, d.Name(), want[i])
		}
	}

	bindings, err := cron.Plan(defs, config.CronConfig{})
	if err != nil {
		t.Fatalf("default schedules do not plan: %v", err)
	}
	if len(bindings) != len(want) {
		t.Errorf("Plan() = %d bindings, want %d", len(bindings), len(want))
	}
}

func TestCheckInIsolatesAccountFailures(t *testing.T) {
	t.Parallel()

	fresh := newFakeAccount("genshin:1", hoyolab.Genshin)
	fresh.checkIn = hoyolab.CheckInResult{TotalDays: 7}
	broken := newFakeAccount("starrail:2", hoyolab.StarRail)
	broken.checkInErr = hoyolab.ErrCookieExpired
	signed := newFakeAccount("zenless:3", hoyolab.Zenless)
	signed.checkIn = hoyolab.CheckInResult{AlreadySigned: true, TotalDays: 7}

	f := newFixture(fresh, broken, signed)
	err := f.deps.checkIn(context.Background())

	if !errors.Is(err, hoyolab.ErrCookieExpired) || !strings.Contains(err.Error(), "starrail:2") {
		t.Errorf("checkIn() error = %v, want starrail:2 cookie failure", err)
	}
	if signed.checkIns != 1 {
		t.Error("account after a failing one was not checked in")
	}
	if f.notifier.count() != 1 || !strings.Contains(f.notifier.msgs[0].Body, "7") {
		t.Errorf("notifications = %+v, want one for the fresh check-in", f.notifier.msgs)
	}
}

func TestMissedCheckIn(t *testing.T) {
	t.Parallel()

	missed := newFakeAccount("genshin:1", hoyolab.Genshin)
	missed.checkIn = hoyolab.CheckInResult{TotalDays: 3}
	done := newFakeAccount("genshin:2", hoyolab.Genshin)
	done.signInfo.IsSigned = true

	f := newFixture(missed, done)
	if err := f.deps.missedCheckIn(context.Background()); err != nil {
		t.Fatalf("missedCheckIn() error = %v", err)
	}
	if missed.checkIns != 1 || done.checkIns != 0 {
		t.Errorf("check-ins = %d/%d, want 1/0", missed.checkIns, done.checkIns)
	}
	if f.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", f.notifier.count())
	}
}

func TestStaminaReminderDeduplicates(t *testing.T) {
	t.Parallel()

	full := newFakeAccount("genshin:1", hoyolab.Genshin)
	full.notes.Stamina = hoyolab.Capacity{Current: 195, Max: 200, RecoverIn: 40 * time.Minute}
	low := newFakeAccount("starrail:2", hoyolab.StarRail)
	low.notes.Stamina = hoyolab.Capacity{Current: 20, Max: 240}
	honkai := newFakeAccount("honkai:3", hoyolab.Honkai)

	f := newFixture(full, low, honkai)
	ctx := context.Background()

	if err := f.deps.stamina(ctx); err != nil {
		t.Fatalf("stamina() error = %v", err)
	}
	if f.notifier.count() != 1 || !strings.Contains(f.notifier.msgs[0].Body, "195/200") {
		t.Fatalf("notifications = %+v, want one for genshin:1", f.notifier.msgs)
	}

	f.now = f.now.Add(30 * time.Minute)
	if err := f.deps.stamina(ctx); err != nil {
		t.Fatalf("stamina() error = %v", err)
	}
	if f.notifier.count() != 1 {
		t.Errorf("reminder repeated within dedup window")
	}

	f.now = f.now.Add(config.DefaultNotifyDedupTTL)
	if err := f.deps.stamina(ctx); err != nil {
		t.Fatalf("stamina() error = %v", err)
	}
	if f.notifier.count() != 2 {
		t.Errorf("reminder not repeated after dedup window, notifications = %d", f.notifier.count())
	}
}

func TestReminderRetriedAfterFailedSend(t *testing.T) {
	t.Parallel()

	full := newFakeAccount("genshin:1", hoyolab.Genshin)
	full.notes.Stamina = hoyolab.Capacity{Current: 200, Max: 200}

	f := newFixture(full)
	f.notifier.failures = 1
	ctx := context.Background()

	if err := f.deps.stamina(ctx); err == nil || !strings.Contains(err.Error(), "telegram 502") {
		t.Fatalf("stamina() error = %v, want send failure", err)
	}

	f.now = f.now.Add(30 * time.Minute)
	if err := f.deps.stamina(ctx); err != nil {
		t.Fatalf("stamina() error = %v", err)
	}
	if f.notifier.attempts != 2 || f.notifier.count() != 1 {
		t.Errorf("attempts = %d, delivered = %d, want 2 and 1", f.notifier.attempts, f.notifier.count())
	}

	f.now = f.now.Add(30 * time.Minute)
	if err := f.deps.stamina(ctx); err != nil {
		t.Fatalf("stamina() error = %v", err)
	}
	if f.notifier.attempts != 2 {
		t.Errorf("delivered reminder was not deduplicated, attempts = %d", f.notifier.attempts)
	}
}

func TestNotesRemindersRespectOptOut(t *testing.T) {
	t.Parallel()

	a := newFakeAccount("genshin:1", hoyolab.Genshin)
	a.noNotify = true
	a.notes.Stamina = hoyolab.Capacity{Current: 200, Max: 200}

	f := newFixture(a)
	if err := f.deps.stamina(context.Background()); err != nil {
		t.Fatalf("stamina() error = %v", err)
	}
	if f.notifier.count() != 0 {
		t.Errorf("opted-out account was notified")
	}
}

func TestReminders(t *testing.T) {
	t.Parallel()

	yes, no := true, false
	finished := hoyolab.ShopFinished
	open := hoyolab.ShopOpen

	tests := []struct {
		name  string
		tag   string
		notes hoyolab.Notes
		run   func(Deps, context.Context) error
		want  int
	}{
		{
			name:  "realm currency near cap",
			tag:   hoyolab.Genshin,
			notes: hoyolab.Notes{RealmCurrency: &hoyolab.Capacity{Current: 2300, Max: 2400}},
			run:   Deps.realmCurrency,
			want:  1,
		},
		{
			name:  "realm currency low",
			tag:   hoyolab.Genshin,
			notes: hoyolab.Notes{RealmCurrency: &hoyolab.Capacity{Current: 100, Max: 2400}},
			run:   Deps.realmCurrency,
		},
		{
			name:  "expeditions all done",
			tag:   hoyolab.StarRail,
			notes: hoyolab.Notes{Expeditions: []hoyolab.Expedition{{Done: true}, {Done: true}}},
			run:   Deps.expedition,
			want:  1,
		},
		{
			name:  "expeditions ongoing",
			tag:   hoyolab.StarRail,
			notes: hoyolab.Notes{Expeditions: []hoyolab.Expedition{{Done: true}, {Done: false}}},
			run:   Deps.expedition,
		},
		{
			name:  "dailies unfinished",
			tag:   hoyolab.StarRail,
			notes: hoyolab.Notes{Dailies: hoyolab.Progress{Completed: 300, Total: 500}},
			run:   Deps.dailiesReminder,
			want:  1,
		},
		{
			name:  "genshin bonus unclaimed",
			tag:   hoyolab.Genshin,
			notes: hoyolab.Notes{Dailies: hoyolab.Progress{Completed: 4, Total: 4}},
			run:   Deps.dailiesReminder,
			want:  1,
		},
		{
			name:  "dailies done",
			tag:   hoyolab.StarRail,
			notes: hoyolab.Notes{Dailies: hoyolab.Progress{Completed: 500, Total: 500}},
			run:   Deps.dailiesReminder,
		},
		{
			name:  "weeklies pending",
			tag:   hoyolab.Genshin,
			notes: hoyolab.Notes{Weeklies: &hoyolab.Progress{Completed: 1, Total: 3}},
			run:   Deps.weekliesReminder,
			want:  1,
		},
		{
			name:  "scratch card pending",
			tag:   hoyolab.Zenless,
			notes: hoyolab.Notes{ScratchCardDone: &no},
			run:   Deps.howlScratchCard,
			want:  1,
		},
		{
			name:  "scratch card done",
			tag:   hoyolab.Zenless,
			notes: hoyolab.Notes{ScratchCardDone: &yes},
			run:   Deps.howlScratchCard,
		},
		{
			name:  "shop finished",
			tag:   hoyolab.Zenless,
			notes: hoyolab.Notes{Shop: &finished},
			run:   Deps.shopStatus,
			want:  1,
		},
		{
			name:  "shop open",
			tag:   hoyolab.Zenless,
			notes: hoyolab.Notes{Shop: &open},
			run:   Deps.shopStatus,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a := newFakeAccount(tc.tag+":1", tc.tag)
			a.notes = tc.notes
			f := newFixture(a)

			if err := tc.run(f.deps, context.Background()); err != nil {
				t.Fatalf("task error = %v", err)
			}
			if got := f.notifier.count(); got != tc.want {
				t.Errorf("notifications = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNotesFailureIsReported(t *testing.T) {
	t.Parallel()

	a := newFakeAccount("genshin:1", hoyolab.Genshin)
	a.notesErr = errors.New("retcode 10102: data not public")
	f := newFixture(a)

	if err := f.deps.expedition(context.Background()); err == nil || !strings.Contains(err.Error(), "genshin:1") {
		t.Errorf("expedition() error = %v, want genshin:1 failure", err)
	}
}

func TestCodeRedeem(t *testing.T) {
	t.Parallel()

	genshin := newFakeAccount("genshin:1", hoyolab.Genshin)
	genshin.redeemErr = map[string]error{"OLDCODE": hoyolab.ErrAlreadyRedeemed}
	honkai := newFakeAccount("honkai:2", hoyolab.Honkai)

	f := newFixture(genshin, honkai)
	f.deps.Config.Redeem.Codes = []string{"newcode ", "OLDCODE", "NEWCODE", ""}
	ctx := context.Background()

	if err := f.deps.codeRedeem(ctx); err != nil {
		t.Fatalf("codeRedeem() error = %v", err)
	}
	if strings.Join(genshin.redeemed, ",") != "NEWCODE,OLDCODE" {
		t.Errorf("redeemed = %v, want NEWCODE,OLDCODE", genshin.redeemed)
	}
	if len(honkai.redeemed) != 0 {
		t.Errorf("honkai redeemed %v, want none", honkai.redeemed)
	}
	if f.notifier.count() != 1 || !strings.Contains(f.notifier.msgs[0].Body, "NEWCODE") {
		t.Errorf("notifications = %+v", f.notifier.msgs)
	}

	if err := f.deps.codeRedeem(ctx); err != nil {
		t.Fatalf("second codeRedeem() error = %v", err)
	}
	if len(genshin.redeemed) != 2 {
		t.Errorf("codes redeemed again: %v", genshin.redeemed)
	}
}

func TestCodeRedeemKeepsFailedCodesForRetry(t *testing.T) {
	t.Parallel()

	a := newFakeAccount("genshin:1", hoyolab.Genshin)
	a.redeemErr = map[string]error{"FLAKY": errors.New("connection reset")}
	f := newFixture(a)
	f.deps.Config.Redeem.Codes = []string{"FLAKY"}

	if err := f.deps.codeRedeem(context.Background()); err == nil {
		t.Fatal("codeRedeem() expected error")
	}
	if done, _ := f.store.IsCodeRedeemed(context.Background(), "genshin:1", "FLAKY"); done {
		t.Error("failed code was marked redeemed")
	}
}

func TestUpdateCookie(t *testing.T) {
	t.Parallel()

	valid := newFakeAccount("genshin:1", hoyolab.Genshin)
	expired := newFakeAccount("starrail:2", hoyolab.StarRail)
	expired.verifyErr = &hoyolab.APIError{Retcode: -100, Message: "Please login"}

	f := newFixture(valid, expired)
	ctx := context.Background()

	err := f.deps.updateCookie(ctx)
	if !errors.Is(err, hoyolab.ErrCookieExpired) {
		t.Errorf("updateCookie() error = %v, want ErrCookieExpired", err)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", f.notifier.count())
	}

	_ = f.deps.updateCookie(ctx)
	if f.notifier.count() != 1 {
		t.Errorf("expired cookie reported twice on the same day")
	}
}

func TestForEachAccountStopsOnCancel(t *testing.T) {
	t.Parallel()

	a := newFakeAccount("genshin:1", hoyolab.Genshin)
	f := newFixture(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.deps.checkIn(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("checkIn() error = %v, want context.Canceled", err)
	}
	if a.checkIns != 0 {
		t.Error("account processed after cancellation")
	}
}
