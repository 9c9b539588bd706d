package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	storecfg "github.com/ujpm/Microsmart-PF/internal/config"
	"github.com/ujpm/Microsmart-PF/internal/domain"
)

// KeyPrefix namespaces every archived object in the remote store.
const KeyPrefix = "cases/"

// CaseStore is the narrow capability surface of the remote content store:
// durable object upload (which triggers the store's own indexing of report
// text) and semantic search over what was indexed.
type CaseStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Search(ctx context.Context, query string, limit int) ([]domain.Match, error)
}

type remoteStore struct {
	client    *s3.Client
	http      *http.Client
	searchURL string
	cfg       *storecfg.StoreConfig
	log       *zap.Logger
}

// NewRemoteStore connects to the S3-compatible content store. The search
// capability of the same service is reached over its HTTP search endpoint,
// derived from the store endpoint unless configured explicitly.
func NewRemoteStore(cfg *storecfg.StoreConfig, log *zap.Logger) (CaseStore, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				Source:            aws.EndpointSourceCustom,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	searchURL := cfg.SearchURL
	if searchURL == "" {
		searchURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/search"
	}

	store := &remoteStore{
		client:    client,
		http:      &http.Client{Timeout: 15 * time.Second},
		searchURL: searchURL,
		cfg:       cfg,
		log:       log,
	}

	if err := store.ensureBucketExists(context.Background()); err != nil {
		log.Warn("Failed to ensure bucket exists", zap.Error(err))
	}

	return store, nil
}

func (r *remoteStore) ensureBucketExists(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(r.cfg.Bucket),
	})
	if err == nil {
		return nil
	}

	r.log.Info("Creating bucket", zap.String("bucket", r.cfg.Bucket))

	_, err = r.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(r.cfg.Bucket),
		CreateBucketConfiguration: &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(r.cfg.Region),
		},
	})
	return err
}

func (r *remoteStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		r.log.Error("Failed to upload object",
			zap.String("key", key),
			zap.Error(err))
		return err
	}

	r.log.Info("Object uploaded",
		zap.String("key", key),
		zap.Int64("size", size))

	return nil
}

// Search forwards the query to the store's semantic search endpoint, scoped
// to the archive namespace, and passes the result list through unchanged.
func (r *remoteStore) Search(ctx context.Context, query string, limit int) ([]domain.Match, error) {
	payload, err := json.Marshal(map[string]any{
		"query":  query,
		"prefix": KeyPrefix,
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.searchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.SecretAccessKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.SecretAccessKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("store search error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var result struct {
		Matches []domain.Match `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return result.Matches, nil
}
