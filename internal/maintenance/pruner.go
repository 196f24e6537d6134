package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rocketmoon/identity/internal/domain"
	"github.com/rocketmoon/identity/internal/metrics"
	"github.com/rocketmoon/identity/internal/repository"
	"github.com/rocketmoon/identity/internal/token"
)

const defaultBatchSize = 500

// Pruner strips session tokens that no longer verify from users' live
// sets. Expired tokens can never resolve again, so removing them only
// keeps the stored sets bounded; it does not change observable behavior.
type Pruner struct {
	users  repository.UserRepository
	codec  *token.Codec
	logger *slog.Logger
	batch  int
}

func NewPruner(users repository.UserRepository, codec *token.Codec, logger *slog.Logger) *Pruner {
	return &Pruner{
		users:  users,
		codec:  codec,
		logger: logger.With("component", "session_pruner"),
		batch:  defaultBatchSize,
	}
}

// Run executes one pruning cycle over a batch of session holders.
func (p *Pruner) Run(ctx context.Context) {
	start := time.Now()

	holders, err := p.users.ListSessionHolders(ctx, p.batch)
	if err != nil {
		p.logger.ErrorContext(ctx, "list session holders", "error", err)
		return
	}

	var pruned int
	for _, user := range holders {
		for _, raw := range user.AuthTokens {
			_, err := p.codec.Verify(raw, token.PurposeAuth)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrExpiredToken) && !errors.Is(err, domain.ErrMalformedToken) {
				continue
			}

			if err := p.users.RemoveAuthToken(ctx, user.ID, raw); err != nil {
				p.logger.ErrorContext(ctx, "remove dead session token", "user_id", user.ID, "error", err)
				continue
			}
			pruned++
			metrics.SessionsPrunedTotal.Inc()
		}
	}

	metrics.PrunerCycleDuration.Observe(time.Since(start).Seconds())
	if pruned > 0 {
		p.logger.InfoContext(ctx, "pruned dead session tokens", "count", pruned, "users_scanned", len(holders))
	}
}
