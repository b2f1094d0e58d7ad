// internal/platform/di/shared/infra.go
package shared

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	dbrepo "thriftmall/internal/adapters/out/db"
	appcfg "thriftmall/internal/infra/config"
	dbinfra "thriftmall/internal/infra/database"
	firestoreinfra "thriftmall/internal/infra/firestore"
)

// Infra is shared runtime infrastructure for DI.
// - owns external clients (Firestore/Postgres/FirebaseAuth/GCS/SecretManager)
// - owns env/config-resolved runtime settings
//
// IMPORTANT:
// Infra must NOT depend on mall routers, handlers, or usecases.
type Infra struct {
	Config   *appcfg.Config
	Settings RuntimeSettings

	// Clients (owned; Close-managed). Only the ones the backend needs are set.
	Firestore     *firestoreinfra.ClientWrapper
	DB            *dbinfra.DB
	GCS           *storage.Client
	FirebaseApp   *firebase.App
	FirebaseAuth  *firebaseauth.Client
	SecretManager *secretmanager.Client
}

// Options tune which optional clients NewInfra creates.
type Options struct {
	// SkipAuth is for CLIs that never verify ID tokens.
	SkipAuth bool
}

// NewInfra initializes shared infra for cfg.
// The selected store backend is strict (return error).
// Firebase/Auth and the archive bucket are best-effort (warn + continue).
func NewInfra(ctx context.Context, cfg *appcfg.Config, opts Options) (*Infra, error) {
	if cfg == nil {
		return nil, errors.New("shared.infra: config is nil")
	}

	settings, warns, err := ResolveRuntimeSettings(cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range warns {
		log.Printf("[shared.infra] WARN: %s", w)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	inf := &Infra{Config: cfg, Settings: settings}

	// Credentials file (optional; mainly for local dev)
	credFile := strings.TrimSpace(cfg.FirestoreCredentialsFile)
	if credFile == "" {
		credFile = strings.TrimSpace(cfg.GCPCreds) // GOOGLE_APPLICATION_CREDENTIALS
	}
	var clientOpts []option.ClientOption
	if credFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credFile))
		log.Printf("[shared.infra] Using credentials file for GCP clients: %s", redactPath(credFile))
	} else {
		log.Printf("[shared.infra] Using Application Default Credentials (no credentials file configured)")
	}

	// 1) Store backend (strict)
	switch settings.Backend {
	case appcfg.BackendFirestore:
		fs, err := firestoreinfra.NewClient(ctx, settings.ProjectID, credFile)
		if err != nil {
			return nil, fmt.Errorf("shared.infra: firestore (project=%s): %w", settings.ProjectID, err)
		}
		inf.Firestore = fs

	case appcfg.BackendPostgres:
		dsn := settings.DatabaseURL
		if dsn == "" {
			sm, err := secretmanager.NewClient(ctx, clientOpts...)
			if err != nil {
				return nil, fmt.Errorf("shared.infra: secretmanager.NewClient failed: %w", err)
			}
			inf.SecretManager = sm
			if dsn, err = accessSecret(ctx, sm, settings.DatabaseURLSecret); err != nil {
				_ = inf.Close()
				return nil, err
			}
			log.Printf("[shared.infra] DATABASE_URL resolved from Secret Manager")
		}
		db, err := dbinfra.NewConnection(ctx, dsn)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: postgres: %w", err)
		}
		inf.DB = db
		if cfg.DatabaseMigrate {
			if err := dbrepo.EnsureSchema(ctx, db.Client); err != nil {
				_ = inf.Close()
				return nil, fmt.Errorf("shared.infra: ensure schema: %w", err)
			}
			log.Printf("[shared.infra] schema ensured")
		}

	case appcfg.BackendMemory:
		log.Printf("[shared.infra] memory backend (no external store)")
	}

	// 2) Archive bucket (best-effort)
	if settings.ArchiveBucket != "" {
		gcsClient, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			log.Printf("[shared.infra] WARN: storage.NewClient failed: %v (sweep archive disabled)", err)
		} else {
			inf.GCS = gcsClient
			log.Printf("[shared.infra] GCS archive bucket=%s prefix=%q", settings.ArchiveBucket, settings.ArchivePrefix)
		}
	}

	// 3) Firebase App/Auth (best-effort; auth middleware fails closed without it)
	if !opts.SkipAuth {
		fbProject := strings.TrimSpace(cfg.FirebaseProjectID)
		if fbProject == "" {
			fbProject = settings.ProjectID
		}
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: fbProject}, clientOpts...)
		if err != nil {
			log.Printf("[shared.infra] WARN: firebase app init failed: %v", err)
		} else {
			inf.FirebaseApp = fbApp
			authClient, err := fbApp.Auth(ctx)
			if err != nil {
				log.Printf("[shared.infra] WARN: firebase auth init failed: %v", err)
			} else {
				inf.FirebaseAuth = authClient
				log.Printf("[shared.infra] Firebase Auth initialized project=%s", fbProject)
			}
		}
	}

	return inf, nil
}

// FirestoreClient returns the raw client or nil.
func (i *Infra) FirestoreClient() *firestore.Client {
	if i == nil || i.Firestore == nil {
		return nil
	}
	return i.Firestore.Client
}

// Ping checks the selected store backend.
func (i *Infra) Ping(ctx context.Context) error {
	if i == nil {
		return errors.New("shared.infra: nil")
	}
	switch {
	case i.Firestore != nil:
		return i.Firestore.Ping(ctx)
	case i.DB != nil:
		return i.DB.Client.PingContext(ctx)
	}
	return nil
}

func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	if i.Firestore != nil {
		_ = i.Firestore.Close()
	}
	if i.DB != nil {
		_ = i.DB.Close()
	}
	if i.GCS != nil {
		_ = i.GCS.Close()
	}
	if i.SecretManager != nil {
		_ = i.SecretManager.Close()
	}
	return nil
}

func redactPath(p string) string {
	// Do not log full path (Windows/Unix compatible light masking)
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	// Keep only the last segment
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	last := parts[len(parts)-1]
	if last == "" {
		return "***"
	}
	return "***" + "/" + last
}
