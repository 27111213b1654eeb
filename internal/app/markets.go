package app

import (
	"github.com/mselser95/mm-oracle/internal/exchanges/unified"
	"go.uber.org/zap"
)

// onMarketsPreloaded marks the service ready after the first preload round
// and logs which exchanges came up without markets.
func (a *App) onMarketsPreloaded() {
	loaded := make([]string, 0)
	missing := make([]string, 0)

	for _, info := range a.factory.Enabled() {
		if !unified.Supported(info.Name) {
			continue
		}
		if len(a.factory.Markets(info.Name)) == 0 {
			missing = append(missing, info.Name)
			continue
		}
		loaded = append(loaded, info.Name)
	}

	if len(missing) > 0 {
		a.logger.Warn("markets-missing-after-preload",
			zap.Strings("exchanges", missing),
			zap.String("note", "clients for these exchanges load markets on first use"))
	}

	a.healthChecker.SetComponentReady(componentMarkets, true)

	a.logger.Info("application-ready",
		zap.Strings("markets-loaded", loaded))
}
