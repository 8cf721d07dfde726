// Package archive uploads final run artifacts to S3-compatible storage.
//
// When a monitored run reaches a terminal status, the final snapshot
// (and the frame journal when present) is archived for later analysis.
// Archival is best-effort: failures are reported to the caller for
// logging but never disturb the monitor.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/sounder/types"
)

// Config holds configuration for the S3 archive backend.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("archive bucket is required")
	}
	return nil
}

// ObjectPutter is the slice of the S3 API the archiver uses.
// Satisfied by *s3.Client; tests substitute a stub.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads final run artifacts.
type Archiver struct {
	config Config
	client ObjectPutter
	now    func() time.Time
}

// New creates an Archiver against real S3.
// Uses the AWS SDK default credential chain (env vars, shared config,
// IAM role).
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewWithClient(cfg, s3.NewFromConfig(awsCfg, s3Opts...))
}

// NewWithClient creates an Archiver with a caller-supplied S3 client.
func NewWithClient(cfg Config, client ObjectPutter) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Archiver{config: cfg, client: client, now: time.Now}, nil
}

// finalRecord is the archived snapshot document.
type finalRecord struct {
	CollectionID string                  `json:"collection_id"`
	ClientID     string                  `json:"client_id"`
	Snapshot     *types.ProgressSnapshot `json:"snapshot"`
	ArchivedAt   string                  `json:"archived_at"` // ISO 8601
}

// ArchiveSnapshot uploads the final snapshot as JSON under
// <prefix>/collection=<id>/<run-timestamp>/snapshot.json.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, collectionID, clientID string, snap *types.ProgressSnapshot) error {
	if collectionID == "" {
		return errors.New("archive requires a collection id")
	}
	if snap == nil {
		return errors.New("archive requires a snapshot")
	}

	at := a.now().UTC()
	doc := finalRecord{
		CollectionID: collectionID,
		ClientID:     clientID,
		Snapshot:     snap,
		ArchivedAt:   at.Format(time.RFC3339),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode final record: %w", err)
	}

	key := a.objectKey(collectionID, at, "snapshot.json")
	return a.put(ctx, key, body, "application/json")
}

// ArchiveJournal uploads the raw frame journal file alongside the
// snapshot. A missing journal file is not an error.
func (a *Archiver) ArchiveJournal(ctx context.Context, collectionID, journalPath string) error {
	if collectionID == "" {
		return errors.New("archive requires a collection id")
	}

	data, err := os.ReadFile(journalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read journal: %w", err)
	}

	key := a.objectKey(collectionID, a.now().UTC(), "journal.frames")
	return a.put(ctx, key, data, "application/octet-stream")
}

func (a *Archiver) objectKey(collectionID string, at time.Time, name string) string {
	return path.Join(
		a.config.Prefix,
		"collection="+collectionID,
		at.Format("20060102T150405Z"),
		name,
	)
}

func (a *Archiver) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}
