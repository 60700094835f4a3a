package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/logging"
	sc "github.com/dmitrijs2005/passm/internal/server/config"
	"github.com/dmitrijs2005/passm/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passm/internal/timex"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ExportedEntry is one entry in an export document. Secret is the stored
// ciphertext blob, base64 encoded by encoding/json.
type ExportedEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
	Secret    []byte    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExportDocument is the JSON object uploaded by Export.
type ExportDocument struct {
	AccountID  string          `json:"account_id"`
	ExportedAt time.Time       `json:"exported_at"`
	Entries    []ExportedEntry `json:"entries"`
}

// ExportResult locates an uploaded export.
type ExportResult struct {
	Key string
	URL string
}

// ExportService uploads an account's encrypted vault to S3-compatible
// storage and hands back a presigned download link. Plaintext never leaves
// the process.
type ExportService struct {
	store     repomanager.Store
	elevation ElevationChecker
	config    *sc.Config
	clock     timex.Clock
	log       logging.Logger
}

func NewExportService(store repomanager.Store, elevation ElevationChecker, cfg *sc.Config, clock timex.Clock, log logging.Logger) *ExportService {
	return &ExportService{
		store:     store,
		elevation: elevation,
		config:    cfg,
		clock:     clock,
		log:       log.With("module", "export"),
	}
}

// StorageKey returns the object key for a new export taken at t.
func StorageKey(accountID string, t time.Time) string {
	return fmt.Sprintf("users/%s/exports/%04d/%02d/%02d/%v.json", accountID, t.Year(), t.Month(), t.Day(), uuid.New())
}

func (s *ExportService) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Export requires elevation. It writes every entry of the account, secrets
// still encrypted, to one JSON object.
func (s *ExportService) Export(ctx context.Context, accountID string) (*ExportResult, error) {
	if ok, err := s.elevation.HasElevation(ctx, accountID); err != nil {
		return nil, err
	} else if !ok {
		return nil, common.ErrElevationRequired
	}

	list, err := s.store.Repos().Entries.List(ctx, accountID)
	if err != nil {
		return nil, storeFailure(ctx, s.log, "export entries", err)
	}

	now := s.clock.Now()
	doc := ExportDocument{AccountID: accountID, ExportedAt: now, Entries: make([]ExportedEntry, 0, len(list))}
	for _, e := range list {
		doc.Entries = append(doc.Entries, ExportedEntry{
			ID:        e.ID,
			Title:     e.Title,
			Username:  e.Username,
			Secret:    e.Secret,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		})
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}

	client, err := s.getClient(ctx)
	if err != nil {
		s.log.Error(ctx, "s3 config failed", "error", err)
		return nil, common.ErrStoreUnavailable
	}

	bucket := s.config.S3Bucket
	key := StorageKey(accountID, now)

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		s.log.Error(ctx, "export upload failed", "key", key, "error", err)
		return nil, common.ErrStoreUnavailable
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.ExportLinkTTL))
	if err != nil {
		s.log.Error(ctx, "presign failed", "key", key, "error", err)
		return nil, common.ErrStoreUnavailable
	}

	s.log.Info(ctx, "vault exported", "account_id", accountID, "key", key, "entries", len(doc.Entries))
	return &ExportResult{Key: key, URL: req.URL}, nil
}
