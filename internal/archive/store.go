package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/formgate/leadcapture/internal/leads"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ErasureRecord is the snapshot written to S3 before a lead is deleted.
type ErasureRecord struct {
	Version  string      `json:"version"`
	ErasedAt time.Time   `json:"erasedAt"`
	Lead     *leads.Lead `json:"lead"`
}

// ManifestEntry is one JSONL line in the monthly erasure manifest. It carries
// no contact data so the manifest itself never needs erasing.
type ManifestEntry struct {
	LeadID   string `json:"leadId"`
	S3Key    string `json:"s3Key"`
	Source   string `json:"source"`
	ErasedAt string `json:"erasedAt"`
}

// Store archives lead snapshots to S3 before erasure.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured (bucket and client are set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveLead writes the lead as JSON to S3 and appends to the monthly
// manifest. Callers must not delete the lead when this returns an error.
func (s *Store) ArchiveLead(ctx context.Context, lead *leads.Lead) error {
	if !s.Enabled() {
		return nil
	}
	if lead == nil {
		return fmt.Errorf("archive: nil lead")
	}

	now := s.now().UTC()
	data, err := json.Marshal(ErasureRecord{Version: "1", ErasedAt: now, Lead: lead})
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	s3Key := fmt.Sprintf("erasures/v1/by-date/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), lead.LeadID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived lead to S3",
		"lead_id", lead.LeadID,
		"s3_key", s3Key,
		"source", lead.Source,
	)

	entry := ManifestEntry{
		LeadID:   lead.LeadID,
		S3Key:    s3Key,
		Source:   lead.Source,
		ErasedAt: now.Format(time.RFC3339),
	}
	if err := s.appendManifest(ctx, entry); err != nil {
		// Log but don't fail; the snapshot is already written.
		s.logger.Warn("failed to append manifest", "error", err, "lead_id", lead.LeadID)
	}

	return nil
}

// appendManifest appends a JSONL line to the monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) appendManifest(ctx context.Context, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := s.now().UTC()
	manifestKey := fmt.Sprintf("erasures/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if !errors.As(err, &nsk) {
			return fmt.Errorf("archive: s3 get manifest: %w", err)
		}
	} else {
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}

	return nil
}

// Ensure interface compliance
var _ leads.EraseArchiver = (*Store)(nil)
