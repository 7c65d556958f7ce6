package hoyolab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/cfd24/hoyolab-auto/internal/config"
)

// Role is the in-game character bound to a HoYoLAB account.
type Role struct {
	UID      string `json:"game_uid"`
	Region   string `json:"region"`
	Nickname string `json:"nickname"`
	Level    int    `json:"level"`
}

// SignInfo is the monthly check-in state.
type SignInfo struct {
	TotalSignDay int    `json:"total_sign_day"`
	Today        string `json:"today"`
	IsSigned     bool   `json:"is_sign"`
	MissedDays   int    `json:"sign_cnt_missed"`
}

// CheckInResult is the outcome of a check-in attempt.
type CheckInResult struct {
	AlreadySigned bool
	TotalDays     int
}

// Account is one configured game account. It is a bootstrap session:
// Connect resolves the role the cookie owns.
type Account struct {
	game   Game
	cfg    config.AccountConfig
	client *Client
	ltuid  string

	mu        sync.RWMutex
	role      Role
	connected bool
}

// NewAccount validates cfg against the supported games and returns an
// unconnected account.
func NewAccount(client *Client, cfg config.AccountConfig) (*Account, error) {
	game, ok := LookupGame(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unsupported game %q", cfg.Type)
	}
	if strings.TrimSpace(cfg.Cookie) == "" {
		return nil, errors.New("cookie is empty")
	}

	return &Account{
		game:   game,
		cfg:    cfg,
		client: client,
		ltuid:  cookieValue(cfg.Cookie, "ltuid_v2", "ltuid", "account_id_v2", "account_id"),
	}, nil
}

// ID identifies the account as "<game>:<uid>", falling back to the
// HoYoLAB account id before the role is known.
func (a *Account) ID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.role.UID != "" {
		return a.game.Tag + ":" + a.role.UID
	}
	if a.cfg.UID != "" {
		return a.game.Tag + ":" + a.cfg.UID
	}
	if a.ltuid != "" {
		return a.game.Tag + ":ltuid-" + a.ltuid
	}
	return a.game.Tag + ":unknown"
}

// Game returns the account's game.
func (a *Account) Game() Game { return a.game }

// Role returns the resolved role. It is zero before Connect.
func (a *Account) Role() Role {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.role
}

// NotifyEnabled reports whether results for this account go to platforms.
func (a *Account) NotifyEnabled() bool { return a.cfg.NotifyEnabled() }

// Connect resolves the role bound to the cookie. When several roles exist
// the configured UID is used, otherwise the highest level role.
func (a *Account) Connect(ctx context.Context) error {
	roles, err := a.roles(ctx)
	if err != nil {
		return err
	}

	role, err := pickRole(roles, a.cfg.UID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.role = role
	a.connected = true
	a.mu.Unlock()

	a.client.logger.Info("Account connected",
		"game", a.game.Tag,
		"uid", role.UID,
		"region", role.Region,
		"nickname", role.Nickname)
	return nil
}

// Verify checks that the cookie is still accepted.
func (a *Account) Verify(ctx context.Context) error {
	_, err := a.roles(ctx)
	return err
}

// SignInfo returns the current month's check-in state.
func (a *Account) SignInfo(ctx context.Context) (SignInfo, error) {
	if !a.game.Supports(CapCheckIn) {
		return SignInfo{}, ErrUnsupported
	}

	var info SignInfo
	err := a.client.do(ctx, request{
		method:  http.MethodGet,
		url:     a.game.SignInfoURL,
		query:   url.Values{"act_id": {a.game.ActID}, "lang": {defaultLang}},
		cookie:  a.cfg.Cookie,
		headers: a.signHeaders(),
	}, &info)
	if err != nil {
		return SignInfo{}, fmt.Errorf("failed to get sign info for %s: %w", a.ID(), err)
	}
	return info, nil
}

// CheckIn claims today's reward unless it was already claimed.
func (a *Account) CheckIn(ctx context.Context) (CheckInResult, error) {
	info, err := a.SignInfo(ctx)
	if err != nil {
		return CheckInResult{}, err
	}
	if info.IsSigned {
		return CheckInResult{AlreadySigned: true, TotalDays: info.TotalSignDay}, nil
	}

	err = a.client.do(ctx, request{
		method:  http.MethodPost,
		url:     a.game.SignURL,
		query:   url.Values{"lang": {defaultLang}},
		body:    map[string]string{"act_id": a.game.ActID},
		cookie:  a.cfg.Cookie,
		headers: a.signHeaders(),
	}, nil)

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Retcode == retcodeAlreadySigned:
		return CheckInResult{AlreadySigned: true, TotalDays: info.TotalSignDay}, nil
	case err != nil:
		return CheckInResult{}, fmt.Errorf("failed to check in %s: %w", a.ID(), err)
	}

	return CheckInResult{TotalDays: info.TotalSignDay + 1}, nil
}

// Notes returns the role's real-time note.
func (a *Account) Notes(ctx context.Context) (Notes, error) {
	if !a.game.Supports(CapNotes) {
		return Notes{}, ErrUnsupported
	}
	role, err := a.connectedRole()
	if err != nil {
		return Notes{}, err
	}

	var data json.RawMessage
	err = a.client.do(ctx, request{
		method: http.MethodGet,
		url:    a.game.NotesURL,
		query:  url.Values{"server": {role.Region}, "role_id": {role.UID}},
		cookie: a.cfg.Cookie,
		ds:     true,
	}, &data)
	if err != nil {
		return Notes{}, fmt.Errorf("failed to get notes for %s: %w", a.ID(), err)
	}

	return parseNotes(a.game.Tag, data)
}

// Redeem exchanges a gift code for the role.
func (a *Account) Redeem(ctx context.Context, code string) error {
	if !a.game.Supports(CapRedeem) {
		return ErrUnsupported
	}
	role, err := a.connectedRole()
	if err != nil {
		return err
	}

	err = a.client.do(ctx, request{
		method: http.MethodGet,
		url:    a.game.RedeemURL,
		query: url.Values{
			"uid":      {role.UID},
			"region":   {role.Region},
			"lang":     {"en"},
			"cdkey":    {code},
			"game_biz": {a.game.GameBiz},
		},
		cookie: a.cfg.Cookie,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to redeem %s for %s: %w", code, a.ID(), err)
	}
	return nil
}

func (a *Account) roles(ctx context.Context) ([]Role, error) {
	var data struct {
		List []Role `json:"list"`
	}
	err := a.client.do(ctx, request{
		method: http.MethodGet,
		url:    rolesURL,
		query:  url.Values{"game_biz": {a.game.GameBiz}},
		cookie: a.cfg.Cookie,
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s roles: %w", a.game.Tag, err)
	}
	return data.List, nil
}

func (a *Account) connectedRole() (Role, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.connected {
		return Role{}, ErrNotConnected
	}
	return a.role, nil
}

func (a *Account) signHeaders() map[string]string {
	if a.game.SignGame == "" {
		return nil
	}
	return map[string]string{"x-rpc-signgame": a.game.SignGame}
}

func pickRole(roles []Role, uid string) (Role, error) {
	if len(roles) == 0 {
		return Role{}, ErrNoRole
	}
	if uid != "" {
		for _, r := range roles {
			if r.UID == uid {
				return r, nil
			}
		}
		return Role{}, fmt.Errorf("%w: uid %s", ErrNoRole, uid)
	}

	best := roles[0]
	for _, r := range roles[1:] {
		if r.Level > best.Level {
			best = r
		}
	}
	return best, nil
}

// cookieValue returns the first non-empty value among keys.
func cookieValue(cookie string, keys ...string) string {
	values := make(map[string]string)
	for _, part := range strings.Split(cookie, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok {
			values[k] = v
		}
	}
	for _, k := range keys {
		if v := values[k]; v != "" {
			return v
		}
	}
	return ""
}
