// Package oauth signs users in through external identity providers.
package oauth

import (
	"context"
	"sort"
)

// UserInfo is the identity a provider vouches for after a code exchange.
// Provider and ID together identify the account; Email is used to link it
// to an existing password account.
type UserInfo struct {
	Provider  string
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

type Provider interface {
	Name() string
	GetConsentURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*UserInfo, error)
}

// Registry maps provider names as they appear in routes to providers.
type Registry map[string]Provider

func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		r[p.Name()] = p
	}
	return r
}

func (r Registry) Get(name string) (Provider, bool) {
	p, ok := r[name]
	return p, ok
}

// Names lists the configured providers in a stable order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
