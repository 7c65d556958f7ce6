package hoyolab

import (
	"github.com/cfd24/hoyolab-auto/internal/bootstrap"
	"github.com/cfd24/hoyolab-auto/internal/config"
)

// NewFactory returns an account factory with every supported game
// registered. All accounts share client.
func NewFactory(client *Client) *bootstrap.Factory[config.AccountConfig, *Account] {
	f := bootstrap.NewFactory[config.AccountConfig, *Account]()
	for _, tag := range Tags() {
		f.Register(tag, func(cfg config.AccountConfig) (*Account, error) {
			return NewAccount(client, cfg)
		})
	}
	return f
}
