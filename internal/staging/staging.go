// Package staging archives fetched pages to S3-compatible object storage so
// raw payloads survive downstream mapping changes.
package staging

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openintegrate/ingest-core/internal/ingest"
)

const (
	defaultBucket = "ingest-staging"
	defaultPrefix = "raw"
)

// Config captures the staging object-store connection.
type Config struct {
	EndpointURL     string
	Region          string
	UseSSL          bool
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
}

// ConfigFromEnv reads STAGING_* variables through the given lookup. It
// returns nil when STAGING_ENDPOINT_URL is unset, which disables staging.
func ConfigFromEnv(lookup func(string) (string, bool)) *Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name, fallback string) string {
		if v, ok := lookup(name); ok && v != "" {
			return v
		}
		return fallback
	}

	endpointURL := get("STAGING_ENDPOINT_URL", "")
	if endpointURL == "" {
		return nil
	}
	return &Config{
		EndpointURL:     endpointURL,
		Region:          get("STAGING_REGION", ""),
		UseSSL:          get("STAGING_USE_SSL", "") == "true",
		AccessKeyID:     get("STAGING_ACCESS_KEY_ID", ""),
		SecretAccessKey: get("STAGING_SECRET_ACCESS_KEY", ""),
		Bucket:          get("STAGING_BUCKET", defaultBucket),
		Prefix:          get("STAGING_PREFIX", defaultPrefix),
	}
}

// Archiver writes gzipped JSONL page objects to the staging bucket.
type Archiver struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewArchiver connects to the staging store and makes sure the bucket exists.
func NewArchiver(ctx context.Context, cfg *Config) (*Archiver, error) {
	if cfg == nil || cfg.EndpointURL == "" {
		return nil, fmt.Errorf("staging endpoint is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("staging credentials are required")
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("invalid staging endpoint URL: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL || u.Scheme == "https"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging client: %w", err)
	}

	a := &Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
	if err := a.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archiver) ensureBucket(ctx context.Context, region string) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check staging bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create staging bucket: %w", err)
	}
	return nil
}

// Archive writes one page of records as a gzipped JSONL object under
// {prefix}/{runID}/{table}/part-{seq}.jsonl.gz.
func (a *Archiver) Archive(ctx context.Context, runID, table string, seq int, records []ingest.Record) error {
	data, err := encodeJSONL(records)
	if err != nil {
		return err
	}

	key := ObjectKey(a.prefix, runID, table, seq)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:     "application/x-ndjson",
		ContentEncoding: "gzip",
	})
	if err != nil {
		return fmt.Errorf("stage %s: %w", key, err)
	}
	return nil
}

// ObjectKey builds the staging object key for one page of one table.
func ObjectKey(prefix, runID, table string, seq int) string {
	return fmt.Sprintf("%s/%s/%s/part-%06d.jsonl.gz", prefix, runID, table, seq)
}

func encodeJSONL(records []ingest.Record) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	enc := json.NewEncoder(zw)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			zw.Close()
			return nil, fmt.Errorf("encode staging record: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flush staging object: %w", err)
	}
	return buf.Bytes(), nil
}
