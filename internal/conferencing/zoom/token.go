package zoom

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
)

// TokenCache хранит токен между процессами (API, планировщик, воркер).
type TokenCache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// tokenSafetyMargin — запас до истечения, после которого токен в кэш не кладётся.
const tokenSafetyMargin = time.Minute

// accountCredentials возвращает источник токенов Server-to-Server OAuth
// (grant_type=account_credentials).
func accountCredentials(ctx context.Context, cfg config.Zoom) oauth2.TokenSource {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		EndpointParams: url.Values{
			"grant_type": {"account_credentials"},
			"account_id": {cfg.AccountID},
		},
		AuthStyle: oauth2.AuthStyleInHeader,
	}
	return cc.TokenSource(ctx)
}

// cachedTokenSource сначала ищет действующий токен в кэше.
type cachedTokenSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	cache TokenCache
	key   string
	log   *slog.Logger
}

func newCachedTokenSource(ctx context.Context, base oauth2.TokenSource, cache TokenCache, accountID string, log *slog.Logger) oauth2.TokenSource {
	if cache == nil {
		return oauth2.ReuseTokenSource(nil, base)
	}
	return oauth2.ReuseTokenSource(nil, &cachedTokenSource{
		ctx:   ctx,
		base:  base,
		cache: cache,
		key:   "zoom:token:" + accountID,
		log:   log,
	})
}

// Token реализует oauth2.TokenSource
func (s *cachedTokenSource) Token() (*oauth2.Token, error) {
	var cached oauth2.Token
	found, err := s.cache.Get(s.ctx, s.key, &cached)
	if err != nil {
		s.log.Warn("zoom token cache read failed", sl.Err(err))
	}
	if found && cached.Valid() {
		return &cached, nil
	}

	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if ttl := time.Until(tok.Expiry) - tokenSafetyMargin; ttl > 0 {
		if err := s.cache.Set(s.ctx, s.key, tok, ttl); err != nil {
			s.log.Warn("zoom token cache write failed", sl.Err(err))
		}
	}
	return tok, nil
}
