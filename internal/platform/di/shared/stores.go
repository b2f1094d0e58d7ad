// internal/platform/di/shared/stores.go
package shared

import (
	"errors"
	"fmt"
	"log"

	dbrepo "thriftmall/internal/adapters/out/db"
	fsrepo "thriftmall/internal/adapters/out/firestore"
	gcsrepo "thriftmall/internal/adapters/out/gcs"
	"thriftmall/internal/adapters/out/memory"
	usecase "thriftmall/internal/application/usecase"
	cartdom "thriftmall/internal/domain/cart"
	rl "thriftmall/internal/domain/ratelimit"
	appcfg "thriftmall/internal/infra/config"
)

// Stores are the outbound adapters for the selected backend.
type Stores struct {
	Usage    rl.Store
	Carts    cartdom.Repository
	Profiles usecase.ProfileWriter
	// Archive is nil unless USAGE_ARCHIVE_URL is set and GCS is reachable.
	Archive rl.Archive
}

// NewStores picks adapters by Settings.Backend.
func NewStores(inf *Infra) (*Stores, error) {
	if inf == nil {
		return nil, errors.New("shared.stores: infra is nil")
	}

	var s Stores
	switch inf.Settings.Backend {
	case appcfg.BackendFirestore:
		fs := inf.FirestoreClient()
		if fs == nil {
			return nil, errors.New("shared.stores: firestore client is nil")
		}
		s.Usage = fsrepo.NewRateLimitRepositoryFS(fs)
		s.Carts = fsrepo.NewCartRepositoryFS(fs)
		s.Profiles = fsrepo.NewUserProfileRepositoryFS(fs)

	case appcfg.BackendPostgres:
		if inf.DB == nil || inf.DB.Client == nil {
			return nil, errors.New("shared.stores: postgres connection is nil")
		}
		s.Usage = dbrepo.NewRateLimitRepositoryPG(inf.DB.Client)
		s.Carts = dbrepo.NewCartRepositoryPG(inf.DB.Client)
		s.Profiles = dbrepo.NewUserProfileRepositoryPG(inf.DB.Client)

	case appcfg.BackendMemory:
		s.Usage = memory.NewRateLimitStore()
		s.Carts = memory.NewCartRepository()
		s.Profiles = memory.NewProfileStore()

	default:
		return nil, fmt.Errorf("shared.stores: unknown backend %q", inf.Settings.Backend)
	}

	if inf.GCS != nil && inf.Settings.ArchiveBucket != "" {
		s.Archive = gcsrepo.NewUsageArchiveGCS(inf.GCS, inf.Settings.ArchiveBucket, inf.Settings.ArchivePrefix)
	}

	log.Printf("[shared.stores] backend=%s usage=%T carts=%T archive=%t",
		inf.Settings.Backend, s.Usage, s.Carts, s.Archive != nil)
	return &s, nil
}
