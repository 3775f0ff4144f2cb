package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/formgate/leadcapture/internal/observability/metrics"
	"github.com/formgate/leadcapture/pkg/logging"
)

// EmailIndexName is the secondary index keyed by email (hash) and createdAt
// (range), serving newest-first lookups for a single address.
const EmailIndexName = "email-createdAt-index"

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// QueryFilter narrows a lead listing. Email switches the lookup onto the
// secondary index; StartDate/EndDate bound createdAt; Limit is clamped to
// maxPageSize; NextToken resumes a previous page sequence.
type QueryFilter struct {
	Email     string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int32
	NextToken string
}

// QueryPage is one page of leads plus the cursor for the next page. An
// empty NextToken means the sequence is exhausted.
type QueryPage struct {
	Items     []*Lead
	NextToken string
}

// LeadStore is the persistence surface the handlers depend on.
type LeadStore interface {
	Insert(ctx context.Context, lead *Lead) error
	GetByID(ctx context.Context, leadID string) (*Lead, error)
	Query(ctx context.Context, filter QueryFilter) (*QueryPage, error)
	Count(ctx context.Context, start, end *time.Time) (int64, error)
	Delete(ctx context.Context, leadID string) error
	Ping(ctx context.Context) error
}

// Store persists leads to DynamoDB.
type Store struct {
	client  dynamoAPI
	table   string
	logger  *logging.Logger
	metrics *metrics.LeadMetrics
}

var _ LeadStore = (*Store)(nil)

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, table string, logger *logging.Logger, m *metrics.LeadMetrics) *Store {
	if client == nil {
		panic("leads: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("leads: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Store{
		client:  client,
		table:   table,
		logger:  logger,
		metrics: m,
	}
}

func (s *Store) observe(op string, start time.Time) {
	s.metrics.ObserveStoreLatency(op, time.Since(start).Seconds())
}

// Insert writes a new lead, refusing to overwrite an existing id. A
// collision returns ErrDuplicateLead.
func (s *Store) Insert(ctx context.Context, lead *Lead) error {
	if lead == nil {
		return errors.New("leads: lead cannot be nil")
	}
	if lead.LeadID == "" {
		return errors.New("leads: leadId required")
	}
	defer s.observe("insert", time.Now())

	// The index key attribute always mirrors the contact email.
	lead.Email = lead.Contact.Email
	if lead.CreatedAt == "" {
		lead.CreatedAt = FormatTime(time.Now())
	}
	if lead.UpdatedAt == "" {
		lead.UpdatedAt = lead.CreatedAt
	}

	item, err := attributevalue.MarshalMap(lead)
	if err != nil {
		return &StorageError{Op: "insert", Err: fmt.Errorf("marshal lead: %w", err)}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(leadId)"),
	})
	if err != nil {
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			return ErrDuplicateLead
		}
		return &StorageError{Op: "insert", Err: err}
	}
	return nil
}

// GetByID fetches a single lead by id.
func (s *Store) GetByID(ctx context.Context, leadID string) (*Lead, error) {
	if leadID == "" {
		return nil, errors.New("leads: leadID required")
	}
	defer s.observe("get", time.Now())

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"leadId": &types.AttributeValueMemberS{Value: leadID},
		},
	})
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	if out.Item == nil {
		return nil, ErrLeadNotFound
	}

	var lead Lead
	if err := attributevalue.UnmarshalMap(out.Item, &lead); err != nil {
		return nil, &StorageError{Op: "get", Err: fmt.Errorf("decode lead: %w", err)}
	}
	return &lead, nil
}

// Query returns one page of leads. With an email filter it runs against the
// secondary index ordered newest-first; otherwise it performs a bounded scan
// with optional createdAt predicates.
func (s *Store) Query(ctx context.Context, filter QueryFilter) (*QueryPage, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var startKey map[string]types.AttributeValue
	if filter.NextToken != "" {
		key, err := decodePageToken(filter.NextToken, filter.Email)
		if err != nil {
			return nil, err
		}
		startKey = key
	}

	if filter.Email != "" {
		return s.queryByEmail(ctx, filter, limit, startKey)
	}
	return s.scanLeads(ctx, filter, limit, startKey)
}

func (s *Store) queryByEmail(ctx context.Context, filter QueryFilter, limit int32, startKey map[string]types.AttributeValue) (*QueryPage, error) {
	defer s.observe("query", time.Now())

	keyCond := "#email = :email"
	names := map[string]string{"#email": "email"}
	values := map[string]types.AttributeValue{
		":email": &types.AttributeValueMemberS{Value: filter.Email},
	}
	if expr, dateNames, dateValues := dateCondition(filter.StartDate, filter.EndDate); expr != "" {
		keyCond += " AND " + expr
		for k, v := range dateNames {
			names[k] = v
		}
		for k, v := range dateValues {
			values[k] = v
		}
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(EmailIndexName),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		Limit:                     aws.Int32(limit),
		ScanIndexForward:          aws.Bool(false),
		ExclusiveStartKey:         startKey,
	})
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	return buildPage(out.Items, out.LastEvaluatedKey)
}

func (s *Store) scanLeads(ctx context.Context, filter QueryFilter, limit int32, startKey map[string]types.AttributeValue) (*QueryPage, error) {
	defer s.observe("scan", time.Now())

	input := &dynamodb.ScanInput{
		TableName:         aws.String(s.table),
		Limit:             aws.Int32(limit),
		ExclusiveStartKey: startKey,
	}
	if expr, names, values := dateCondition(filter.StartDate, filter.EndDate); expr != "" {
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	out, err := s.client.Scan(ctx, input)
	if err != nil {
		return nil, &StorageError{Op: "scan", Err: err}
	}
	return buildPage(out.Items, out.LastEvaluatedKey)
}

// Count scans the table counting leads within the optional createdAt bounds,
// following continuation keys until the table is exhausted.
func (s *Store) Count(ctx context.Context, start, end *time.Time) (int64, error) {
	defer s.observe("count", time.Now())

	var total int64
	var startKey map[string]types.AttributeValue
	for {
		input := &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		}
		if expr, names, values := dateCondition(start, end); expr != "" {
			input.FilterExpression = aws.String(expr)
			input.ExpressionAttributeNames = names
			input.ExpressionAttributeValues = values
		}

		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return 0, &StorageError{Op: "count", Err: err}
		}
		total += int64(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Delete removes a lead permanently. Absence returns ErrLeadNotFound so
// erasure requests against unknown ids are distinguishable from faults.
func (s *Store) Delete(ctx context.Context, leadID string) error {
	if leadID == "" {
		return errors.New("leads: leadID required")
	}
	defer s.observe("delete", time.Now())

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"leadId": &types.AttributeValueMemberS{Value: leadID},
		},
		ConditionExpression: aws.String("attribute_exists(leadId)"),
	})
	if err != nil {
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			return ErrLeadNotFound
		}
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

// Ping verifies the table is reachable. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// dateCondition builds a createdAt predicate usable both as a key condition
// on the index and as a scan filter. Returns "" when no bounds are set.
func dateCondition(start, end *time.Time) (string, map[string]string, map[string]types.AttributeValue) {
	if start == nil && end == nil {
		return "", nil, nil
	}
	names := map[string]string{"#createdAt": "createdAt"}
	values := make(map[string]types.AttributeValue)
	switch {
	case start != nil && end != nil:
		values[":start"] = &types.AttributeValueMemberS{Value: FormatTime(*start)}
		values[":end"] = &types.AttributeValueMemberS{Value: FormatTime(*end)}
		return "#createdAt BETWEEN :start AND :end", names, values
	case start != nil:
		values[":start"] = &types.AttributeValueMemberS{Value: FormatTime(*start)}
		return "#createdAt >= :start", names, values
	default:
		values[":end"] = &types.AttributeValueMemberS{Value: FormatTime(*end)}
		return "#createdAt <= :end", names, values
	}
}

func buildPage(items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue) (*QueryPage, error) {
	page := &QueryPage{Items: make([]*Lead, 0, len(items))}
	if err := attributevalue.UnmarshalListOfMaps(items, &page.Items); err != nil {
		return nil, &StorageError{Op: "query", Err: fmt.Errorf("decode leads: %w", err)}
	}
	token, err := encodePageToken(lastKey)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	page.NextToken = token
	return page, nil
}
