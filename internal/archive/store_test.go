package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formgate/leadcapture/internal/leads"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	putErr   error
	getErr   error
	objects  map[string][]byte // key -> body
}

type putCall struct {
	bucket      string
	key         string
	contentType string
	body        []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{
		bucket:      *input.Bucket,
		key:         *input.Key,
		contentType: *input.ContentType,
		body:        body,
	})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func newFixedStore(mock *mockS3Client) *Store {
	store := NewStore(mock, "test-bucket", nil)
	store.now = func() time.Time {
		return time.Date(2026, 8, 22, 10, 15, 0, 0, time.UTC)
	}
	return store
}

func erasedLead() *leads.Lead {
	return &leads.Lead{
		LeadID:    "9f2c1d44-7a50-4b8e-bb1f-2d6f3a8e9c01",
		Email:     "jane@example.com",
		CreatedAt: "2026-08-01T12:00:00.000Z",
		UpdatedAt: "2026-08-01T12:00:00.000Z",
		Source:    "forms.example.com",
		Contact: leads.Contact{
			Name:  "Jane Doe",
			Email: "jane@example.com",
		},
	}
}

func TestStore_ArchiveLead(t *testing.T) {
	mock := newMockS3()
	store := newFixedStore(mock)

	err := store.ArchiveLead(context.Background(), erasedLead())
	require.NoError(t, err)

	// Two PutObject calls: snapshot + manifest
	require.Len(t, mock.putCalls, 2)

	snapshot := mock.putCalls[0]
	assert.Equal(t, "test-bucket", snapshot.bucket)
	assert.Equal(t, "erasures/v1/by-date/2026/08/22/9f2c1d44-7a50-4b8e-bb1f-2d6f3a8e9c01.json", snapshot.key)
	assert.Equal(t, "application/json", snapshot.contentType)

	var record ErasureRecord
	require.NoError(t, json.Unmarshal(snapshot.body, &record))
	assert.Equal(t, "1", record.Version)
	require.NotNil(t, record.Lead)
	assert.Equal(t, "Jane Doe", record.Lead.Contact.Name)
	assert.Equal(t, "jane@example.com", record.Lead.Contact.Email)

	manifest := mock.putCalls[1]
	assert.Equal(t, "erasures/v1/manifests/2026-08.jsonl", manifest.key)
	assert.Equal(t, "application/x-ndjson", manifest.contentType)

	var entry ManifestEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(manifest.body), &entry))
	assert.Equal(t, "9f2c1d44-7a50-4b8e-bb1f-2d6f3a8e9c01", entry.LeadID)
	assert.Equal(t, snapshot.key, entry.S3Key)
	assert.Equal(t, "forms.example.com", entry.Source)
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil, "", nil)
	assert.False(t, store.Enabled())

	err := store.ArchiveLead(context.Background(), erasedLead())
	assert.NoError(t, err) // no-op, no error
}

func TestStore_ArchiveLead_PutFailure(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("access denied")
	store := newFixedStore(mock)

	err := store.ArchiveLead(context.Background(), erasedLead())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 put")
}

func TestStore_ManifestAccumulatesEntries(t *testing.T) {
	mock := newMockS3()
	store := newFixedStore(mock)

	first := erasedLead()
	second := erasedLead()
	second.LeadID = "1b7a9e02-3c4d-4e5f-8a9b-0c1d2e3f4a5b"

	require.NoError(t, store.ArchiveLead(context.Background(), first))
	require.NoError(t, store.ArchiveLead(context.Background(), second))

	// The second manifest write should contain both entries.
	lastPut := mock.putCalls[len(mock.putCalls)-1]
	lines := bytes.Split(bytes.TrimSpace(lastPut.body), []byte("\n"))
	require.Len(t, lines, 2)

	var entry ManifestEntry
	require.NoError(t, json.Unmarshal(lines[1], &entry))
	assert.Equal(t, second.LeadID, entry.LeadID)
}

func TestStore_ManifestFailureDoesNotFailArchive(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("s3 unavailable")
	store := newFixedStore(mock)

	err := store.ArchiveLead(context.Background(), erasedLead())
	assert.NoError(t, err)

	// Snapshot landed even though the manifest append was skipped.
	require.Len(t, mock.putCalls, 1)
	assert.Contains(t, mock.putCalls[0].key, "erasures/v1/by-date/")
}
