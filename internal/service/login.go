package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/model"
)

// IdentityProvider is the external OAuth provider.  JoinGuild is best
// effort and reports failure as false.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (model.ExternalProfile, error)
	JoinGuild(ctx context.Context, discordID, accessToken string) bool
}

// LoginFlow drives an OAuth callback from authorization code to session.
type LoginFlow struct {
	provider IdentityProvider
	resolver *IdentityResolver
	log      zerolog.Logger
}

func NewLoginFlow(provider IdentityProvider, resolver *IdentityResolver, log zerolog.Logger) *LoginFlow {
	return &LoginFlow{provider: provider, resolver: resolver, log: log}
}

// Complete exchanges code, fetches the profile, attempts the guild
// auto-join and resolves the identity.  Every failure is a *LoginError.
func (f *LoginFlow) Complete(ctx context.Context, code string) (*Resolution, error) {
	if code == "" {
		return nil, loginErr(KindMissingCode, nil)
	}
	accessToken, err := f.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, loginErr(KindExchangeFailed, err)
	}
	profile, err := f.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, loginErr(KindProfileFailed, err)
	}
	joined := f.provider.JoinGuild(ctx, profile.ID, accessToken)
	return f.resolver.Resolve(ctx, profile, joined)
}
