package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/netx"
	sc "github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	exportBatchSize   = 500
	exportURLValidity = 15 * time.Minute
	csvContentType    = "text/csv"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	uploadObject = netx.UploadToPresignedURL
)

var exportHeader = []string{
	"id", "full_name", "email", "phone", "message", "status", "priority",
	"assigned_username", "notes", "source", "created_at", "updated_at",
}

// ExportResult points at an uploaded CSV export.
type ExportResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService writes filtered contacts to CSV in object storage and hands
// back a short-lived download link.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	httpClient  *http.Client
	logger      logging.Logger
	now         func() time.Time
}

func NewExportService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, logger logging.Logger) *ExportService {
	return &ExportService{
		db:          db,
		repomanager: m,
		config:      cfg,
		httpClient:  &http.Client{Timeout: time.Minute},
		logger:      logger.With("module", "export"),
		now:         time.Now,
	}
}

func (s *ExportService) storageKey() string {
	d := s.now().UTC()
	return fmt.Sprintf("exports/contacts/%d/%02d/%02d/%v.csv", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ExportService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
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

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3PresignClient(client), nil
}

// collect pages through every contact matching f.
func (s *ExportService) collect(ctx context.Context, f models.ContactFilter) ([]models.Contact, error) {
	repo := s.repomanager.Contacts(s.db)
	f.Limit = exportBatchSize

	var out []models.Contact
	for f.Page = 1; ; f.Page++ {
		items, total, err := repo.List(ctx, f)
		if err != nil {
			return nil, storageError("list contacts", err)
		}
		out = append(out, items...)
		if len(items) < f.Limit || len(out) >= total {
			return out, nil
		}
	}
}

func encodeCSV(contacts []models.Contact) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, c := range contacts {
		rec := []string{
			c.ID, c.FullName, c.Email, c.Phone, c.Message,
			string(c.Status), string(c.Priority),
			deref(c.AssignedUsername), deref(c.Notes), c.Source,
			c.CreatedAt.UTC().Format(time.RFC3339), c.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Export uploads the contacts matching f and returns a presigned GET URL
// valid for 15 minutes.
func (s *ExportService) Export(ctx context.Context, caller models.Identity, f models.ContactFilter) (*ExportResult, error) {
	if strings.TrimSpace(s.config.S3Bucket) == "" {
		return nil, common.ErrStorageNotConfigured
	}
	if err := validateFilter(f); err != nil {
		return nil, err
	}

	contacts, err := s.collect(ctx, f)
	if err != nil {
		return nil, err
	}

	body, err := encodeCSV(contacts)
	if err != nil {
		return nil, fmt.Errorf("%w: encode csv: %v", common.ErrorInternal, err)
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: storage client: %v", common.ErrorInternal, err)
	}

	bucket := s.config.S3Bucket
	key := s.storageKey()

	put, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String(csvContentType),
	}, s3.WithPresignExpires(exportURLValidity))
	if err != nil {
		return nil, fmt.Errorf("%w: presign put: %v", common.ErrorInternal, err)
	}

	if err := uploadObject(ctx, s.httpClient, put.URL, csvContentType, body); err != nil {
		return nil, fmt.Errorf("%w: upload export: %v", common.ErrorInternal, err)
	}

	get, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(exportURLValidity))
	if err != nil {
		return nil, fmt.Errorf("%w: presign get: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "contacts exported", "key", key, "count", len(contacts), "by", caller.ID)
	return &ExportResult{
		Key:       key,
		URL:       get.URL,
		Count:     len(contacts),
		ExpiresAt: s.now().Add(exportURLValidity),
	}, nil
}
