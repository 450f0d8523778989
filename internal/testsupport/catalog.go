package testsupport

import (
	"testing"

	"layerreduce/internal/catalog"
	"layerreduce/internal/config"
)

// MustOpenCatalog opens the catalog configured in cfg and closes it when the
// test finishes.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
