package engine

import (
	"log/slog"
	"time"

	"github.com/mychatmanager/chatmod/automod/cachestore"
	"github.com/mychatmanager/chatmod/automod/classify"
	"github.com/mychatmanager/chatmod/automod/escalation"
	"github.com/mychatmanager/chatmod/automod/flood"
	"github.com/mychatmanager/chatmod/automod/policystore"
	"github.com/mychatmanager/chatmod/automod/ratewindow"
)

// Returns an in-memory engine and the policy store behind it.
func EngineTestFixture() (*Engine, *policystore.MemStore) {
	store := policystore.NewMemStore()
	cache := cachestore.NewMemCacheStore(10, time.Hour)
	resolver := policystore.NewResolver(store, store, cache, classify.DefaultGlobalBlacklist, slog.Default())
	eng := Engine{
		Logger:     slog.Default(),
		Config:     resolver,
		Classifier: classify.NewClassifier(),
		Flood: flood.NewDetector(flood.Config{
			Windows: ratewindow.NewMemWindowStore(ratewindow.DefaultRetention),
		}),
		Escalation: escalation.NewEscalator(escalation.NewMemWarningStore(), slog.Default()),
	}
	return &eng, store
}
