package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/nftmart/internal/config"
	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/market"
)

// Seed writes the configured governance parameters and genesis state into an
// empty store. A store that already holds parameters is left untouched, so
// restarts never fund accounts twice. Parameters go first: a seed that fails
// halfway is not retried on the next start.
func Seed(ctx context.Context, eng *market.Engine, cfg *config.Config, operator domain.AccountID, logger *slog.Logger) (bool, error) {
	if _, err := eng.Params(ctx); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("genesis: read params: %w", err)
	}

	params, err := cfg.Market.Params()
	if err != nil {
		return false, fmt.Errorf("genesis: %w", err)
	}
	if err := eng.UpdateParams(ctx, operator, params); err != nil {
		return false, fmt.Errorf("genesis: params: %w", err)
	}

	for _, acc := range cfg.Genesis.Accounts {
		amount, err := config.ParseUnits(acc.Balance)
		if err != nil {
			return true, fmt.Errorf("genesis: balance of %s: %w", acc.Address, err)
		}
		who := common.HexToAddress(acc.Address)
		if err := eng.Deposit(ctx, domain.NativeCurrencyID, who, amount); err != nil {
			return true, fmt.Errorf("genesis: fund %s: %w", who.Hex(), err)
		}
	}

	for _, a := range cfg.Genesis.Whitelist {
		if err := eng.AddWhitelist(ctx, common.HexToAddress(a)); err != nil {
			return true, fmt.Errorf("genesis: whitelist %s: %w", a, err)
		}
	}

	for _, meta := range cfg.Genesis.Categories {
		if _, err := eng.CreateCategory(ctx, operator, []byte(meta)); err != nil {
			return true, fmt.Errorf("genesis: category %q: %w", meta, err)
		}
	}

	logger.InfoContext(ctx, "genesis: store seeded",
		slog.Int("accounts", len(cfg.Genesis.Accounts)),
		slog.Int("whitelist", len(cfg.Genesis.Whitelist)),
		slog.Int("categories", len(cfg.Genesis.Categories)),
	)
	return true, nil
}
