package database

import (
	"context"
	"fmt"

	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/vault"
)

// InitMongoDB builds and connects the document store described by cfg.
// When a Vault client is given, the KV path may override the connection
// string and database, and the role path supplies dynamic credentials.
func InitMongoDB(
	ctx context.Context,
	cfg config.Config,
	vaultClient *vault.Client,
	log logger.Logger,
) (*MongoDB, error) {
	opts := []MongoDBOption{
		WithMongoURI(cfg.MongoDB.URI),
		WithMongoDatabase(cfg.MongoDB.Database),
		WithMongoTimeout(cfg.MongoDB.Timeout),
		WithMongoLogger(log),
	}

	if vaultClient != nil {
		if path := cfg.MongoDB.Vault.KVPath; path != "" {
			static, err := vaultClient.GetStaticCredentials(ctx, path)
			if err != nil {
				return nil, fmt.Errorf("vault read %s: %w", path, err)
			}
			opts = append(opts,
				WithMongoURI(static.URI),
				WithMongoDatabase(static.Database),
				WithMongoCredentials(static.Username, static.Password),
			)
		}
		if path := cfg.MongoDB.Vault.RolePath; path != "" {
			creds, err := vaultClient.GetDynamicCredentials(ctx, path)
			if err != nil {
				return nil, fmt.Errorf("vault read %s: %w", path, err)
			}
			log.Debug("issued dynamic database credentials", "ttl", creds.TTL.String())
			opts = append(opts, WithMongoCredentials(creds.Username, creds.Password))
		}
	}

	db := NewMongoDB(cfg, opts...)
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("initialize mongodb: %w", err)
	}
	return db, nil
}
