package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/formgate/leadcapture/pkg/logging"
)

func TestStore_InsertGuardsAgainstOverwrite(t *testing.T) {
	mock := &mockDynamo{}
	store := NewStore(mock, "leads", logging.Default(), nil)

	lead := &Lead{
		LeadID: "lead-123",
		Contact: Contact{
			Name:  "Jane Doe",
			Email: "jane@example.com",
		},
	}

	if err := store.Insert(context.Background(), lead); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	if mock.putInput == nil {
		t.Fatalf("expected PutItem to be called")
	}
	if expr := mock.putInput.ConditionExpression; expr == nil || *expr != "attribute_not_exists(leadId)" {
		t.Fatalf("expected condition expression to prevent overwrites, got %v", expr)
	}

	var stored Lead
	if err := attributevalue.UnmarshalMap(mock.putInput.Item, &stored); err != nil {
		t.Fatalf("failed to unmarshal stored lead: %v", err)
	}
	if stored.Email != "jane@example.com" {
		t.Fatalf("expected top-level index email to mirror contact, got %q", stored.Email)
	}
	if stored.CreatedAt == "" || stored.UpdatedAt == "" {
		t.Fatal("expected timestamps to be populated")
	}
}

func TestStore_InsertDuplicate(t *testing.T) {
	mock := &mockDynamo{putErr: &types.ConditionalCheckFailedException{}}
	store := NewStore(mock, "leads", logging.Default(), nil)

	err := store.Insert(context.Background(), &Lead{LeadID: "lead-123"})
	if !errors.Is(err, ErrDuplicateLead) {
		t.Fatalf("expected ErrDuplicateLead, got %v", err)
	}
}

func TestStore_InsertStorageError(t *testing.T) {
	mock := &mockDynamo{putErr: errors.New("dynamo failed")}
	store := NewStore(mock, "leads", logging.Default(), nil)

	err := store.Insert(context.Background(), &Lead{LeadID: "lead-123"})
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if errors.Is(err, ErrDuplicateLead) {
		t.Fatal("storage fault must not be classified as a duplicate")
	}
}

func TestStore_InsertNilLead(t *testing.T) {
	store := NewStore(&mockDynamo{}, "leads", logging.Default(), nil)
	if err := store.Insert(context.Background(), nil); err == nil {
		t.Fatal("expected error when lead is nil")
	}
}

func TestStore_GetByID_Success(t *testing.T) {
	want := &Lead{
		LeadID:    "lead-42",
		CreatedAt: "2026-08-01T10:00:00.000Z",
		Contact:   Contact{Name: "Jane Doe", Email: "jane@example.com"},
	}
	item, err := attributevalue.MarshalMap(want)
	if err != nil {
		t.Fatalf("failed to marshal fixture: %v", err)
	}

	mock := &mockDynamo{getOutput: &dynamodb.GetItemOutput{Item: item}}
	store := NewStore(mock, "leads", logging.Default(), nil)

	got, err := store.GetByID(context.Background(), "lead-42")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.LeadID != want.LeadID || got.Contact != want.Contact {
		t.Fatalf("unexpected lead result: %#v", got)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	mock := &mockDynamo{getOutput: &dynamodb.GetItemOutput{}}
	store := NewStore(mock, "leads", logging.Default(), nil)

	_, err := store.GetByID(context.Background(), "lead-42")
	if !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestStore_QueryByEmailUsesIndex(t *testing.T) {
	lastKey := map[string]types.AttributeValue{
		"leadId":    &types.AttributeValueMemberS{Value: "lead-9"},
		"email":     &types.AttributeValueMemberS{Value: "jane@example.com"},
		"createdAt": &types.AttributeValueMemberS{Value: "2026-08-01T10:00:00.000Z"},
	}
	item, _ := attributevalue.MarshalMap(&Lead{LeadID: "lead-9", Email: "jane@example.com"})
	mock := &mockDynamo{
		queryOutput: &dynamodb.QueryOutput{
			Items:            []map[string]types.AttributeValue{item},
			LastEvaluatedKey: lastKey,
		},
	}
	store := NewStore(mock, "leads", logging.Default(), nil)

	page, err := store.Query(context.Background(), QueryFilter{Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	input := mock.queryInput
	if input == nil {
		t.Fatal("expected Query to be called")
	}
	if input.IndexName == nil || *input.IndexName != EmailIndexName {
		t.Fatalf("expected email index, got %v", input.IndexName)
	}
	if input.ScanIndexForward == nil || *input.ScanIndexForward {
		t.Fatal("expected newest-first ordering")
	}
	if *input.Limit != defaultPageSize {
		t.Fatalf("expected default page size, got %d", *input.Limit)
	}

	if len(page.Items) != 1 || page.Items[0].LeadID != "lead-9" {
		t.Fatalf("unexpected page items: %#v", page.Items)
	}
	if page.NextToken == "" {
		t.Fatal("expected continuation token")
	}

	key, err := decodePageToken(page.NextToken, "jane@example.com")
	if err != nil {
		t.Fatalf("round-trip decode failed: %v", err)
	}
	if got := key["leadId"].(*types.AttributeValueMemberS).Value; got != "lead-9" {
		t.Fatalf("expected token to carry last key, got %q", got)
	}
}

func TestStore_QueryByEmailWithDateRange(t *testing.T) {
	mock := &mockDynamo{queryOutput: &dynamodb.QueryOutput{}}
	store := NewStore(mock, "leads", logging.Default(), nil)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	_, err := store.Query(context.Background(), QueryFilter{
		Email:     "jane@example.com",
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	cond := *mock.queryInput.KeyConditionExpression
	if cond != "#email = :email AND #createdAt BETWEEN :start AND :end" {
		t.Fatalf("unexpected key condition: %q", cond)
	}
	values := mock.queryInput.ExpressionAttributeValues
	if got := values[":start"].(*types.AttributeValueMemberS).Value; got != "2026-08-01T00:00:00.000Z" {
		t.Fatalf("unexpected start bound: %q", got)
	}
}

func TestStore_QueryWithoutEmailScans(t *testing.T) {
	mock := &mockDynamo{scanOutputs: []*dynamodb.ScanOutput{{}}}
	store := NewStore(mock, "leads", logging.Default(), nil)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	page, err := store.Query(context.Background(), QueryFilter{StartDate: &start, Limit: 500})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if page.NextToken != "" {
		t.Fatalf("expected exhausted sequence, got token %q", page.NextToken)
	}

	if len(mock.scanInputs) != 1 {
		t.Fatalf("expected 1 scan, got %d", len(mock.scanInputs))
	}
	input := mock.scanInputs[0]
	if *input.Limit != maxPageSize {
		t.Fatalf("expected limit clamped to %d, got %d", maxPageSize, *input.Limit)
	}
	if input.FilterExpression == nil || *input.FilterExpression != "#createdAt >= :start" {
		t.Fatalf("unexpected filter expression: %v", input.FilterExpression)
	}
}

func TestStore_QueryRejectsGarbageToken(t *testing.T) {
	mock := &mockDynamo{}
	store := NewStore(mock, "leads", logging.Default(), nil)

	_, err := store.Query(context.Background(), QueryFilter{NextToken: "not-a-token"})
	if !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
	if mock.scanInputs != nil || mock.queryInput != nil {
		t.Fatal("store must not be queried with a bad token")
	}
}

func TestStore_QueryRejectsTokenFromOtherQueryShape(t *testing.T) {
	// Token minted by an unfiltered scan must not resume an email query.
	token, err := encodePageToken(map[string]types.AttributeValue{
		"leadId": &types.AttributeValueMemberS{Value: "lead-1"},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	store := NewStore(&mockDynamo{}, "leads", logging.Default(), nil)
	_, err = store.Query(context.Background(), QueryFilter{Email: "jane@example.com", NextToken: token})
	if !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestStore_CountFollowsContinuationKeys(t *testing.T) {
	mock := &mockDynamo{
		scanOutputs: []*dynamodb.ScanOutput{
			{Count: 70, LastEvaluatedKey: map[string]types.AttributeValue{
				"leadId": &types.AttributeValueMemberS{Value: "lead-70"},
			}},
			{Count: 12},
		},
	}
	store := NewStore(mock, "leads", logging.Default(), nil)

	total, err := store.Count(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if total != 82 {
		t.Fatalf("expected 82, got %d", total)
	}
	if len(mock.scanInputs) != 2 {
		t.Fatalf("expected 2 scan pages, got %d", len(mock.scanInputs))
	}
	if mock.scanInputs[0].Select != types.SelectCount {
		t.Fatalf("expected COUNT select, got %v", mock.scanInputs[0].Select)
	}
	if mock.scanInputs[1].ExclusiveStartKey == nil {
		t.Fatal("expected second page to resume from continuation key")
	}
}

func TestStore_DeleteMissingLead(t *testing.T) {
	mock := &mockDynamo{deleteErr: &types.ConditionalCheckFailedException{}}
	store := NewStore(mock, "leads", logging.Default(), nil)

	err := store.Delete(context.Background(), "lead-404")
	if !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestStore_PingWrapsFault(t *testing.T) {
	mock := &mockDynamo{describeErr: errors.New("table missing")}
	store := NewStore(mock, "leads", logging.Default(), nil)

	err := store.Ping(context.Background())
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

type mockDynamo struct {
	putInput    *dynamodb.PutItemInput
	putErr      error
	getInput    *dynamodb.GetItemInput
	getOutput   *dynamodb.GetItemOutput
	getErr      error
	deleteInput *dynamodb.DeleteItemInput
	deleteErr   error
	queryInput  *dynamodb.QueryInput
	queryOutput *dynamodb.QueryOutput
	queryErr    error
	scanInputs  []*dynamodb.ScanInput
	scanOutputs []*dynamodb.ScanOutput
	scanErr     error
	describeErr error
}

func (m *mockDynamo) PutItem(ctx context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	return &dynamodb.PutItemOutput{}, m.putErr
}

func (m *mockDynamo) GetItem(ctx context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.getInput = input
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return m.getOutput, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.deleteInput = input
	return &dynamodb.DeleteItemOutput{}, m.deleteErr
}

func (m *mockDynamo) Query(ctx context.Context, input *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.queryInput = input
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.queryOutput == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return m.queryOutput, nil
}

func (m *mockDynamo) Scan(ctx context.Context, input *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.scanInputs = append(m.scanInputs, input)
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	if len(m.scanOutputs) == 0 {
		return &dynamodb.ScanOutput{}, nil
	}
	out := m.scanOutputs[0]
	m.scanOutputs = m.scanOutputs[1:]
	return out, nil
}

func (m *mockDynamo) DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	return &dynamodb.DescribeTableOutput{}, nil
}
