// Package backends opens the storage gateway selected by configuration.
package backends

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
	"github.com/dpup/wolfcreekpass/server/internal/storage/blob"
	"github.com/dpup/wolfcreekpass/server/internal/storage/dynamostore"
	"github.com/dpup/wolfcreekpass/server/internal/storage/sqlstore"
)

// Open builds the configured gateway. Callers still need to call Init.
func Open(ctx context.Context, cfg config.StorageConfig) (storage.Gateway, error) {
	switch cfg.Backend {
	case config.BackendSQLite, config.BackendPostgres:
		return openRelational(cfg)
	case config.BackendDynamo:
		return openDynamo(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w %q", storage.ErrUnknownBackend, cfg.Backend)
	}
}

func openRelational(cfg config.StorageConfig) (storage.Gateway, error) {
	imageDir := cfg.ImageDir
	if imageDir == "" {
		imageDir = "data"
	}
	images, err := blob.NewLocal(imageDir)
	if err != nil {
		return nil, err
	}

	opts := sqlstore.Options{Dialect: cfg.Backend, Images: images}
	if cfg.Backend == config.BackendSQLite {
		opts.DSN = filepath.Clean(cfg.SQLitePath)
	} else {
		opts.DSN = cfg.PostgresDSN
	}
	return sqlstore.Open(opts)
}

func openDynamo(ctx context.Context, cfg config.StorageConfig) (storage.Gateway, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := cfg.EndpointURL
	dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	images := blob.NewS3(s3Client, cfg.BucketName, awsCfg.Region, endpoint)
	return dynamostore.New(dynamoClient, dynamostore.Options{
		Table:           cfg.TableName,
		Images:          images,
		CreateResources: endpoint != "",
	}), nil
}
