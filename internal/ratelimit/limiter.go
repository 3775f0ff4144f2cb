package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/formgate/leadcapture/pkg/logging"
)

// window is the fixed bucket size; counters expire after two windows so
// stale buckets clean themselves up.
const window = time.Hour

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Decision is the outcome of a rate limit check. ResetMinutes counts down
// to the next window boundary so rejected callers know when to retry.
type Decision struct {
	Allowed      bool
	CurrentCount int64
	ResetMinutes int
}

// Limiter counts requests per client in fixed one-hour windows backed by a
// DynamoDB counter table.
//
// failOpen is the dependency-failure policy: when true, a store error lets
// the request through rather than refusing all traffic during an outage.
type Limiter struct {
	client     dynamoAPI
	table      string
	maxPerHour int64
	failOpen   bool
	logger     *logging.Logger
	now        func() time.Time
}

// New builds a limiter over the given counter table.
func New(client dynamoAPI, table string, maxPerHour int, failOpen bool, logger *logging.Logger) *Limiter {
	if client == nil {
		panic("ratelimit: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("ratelimit: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Limiter{
		client:     client,
		table:      table,
		maxPerHour: int64(maxPerHour),
		failOpen:   failOpen,
		logger:     logger,
		now:        time.Now,
	}
}

type counterRecord struct {
	Count int64 `dynamodbav:"count"`
}

// Check reads the current window's counter and decides whether another
// request fits under the hourly budget. Under failOpen, a store fault is
// logged and the request is allowed.
func (l *Limiter) Check(ctx context.Context, clientID string) (Decision, error) {
	now := l.now()
	decision := Decision{ResetMinutes: minutesToNextWindow(now)}

	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"windowKey": &types.AttributeValueMemberS{Value: windowKey(clientID, now)},
		},
	})
	if err != nil {
		if l.failOpen {
			l.logger.Warn("rate limit check failed, allowing request", "client", clientID, "error", err)
			decision.Allowed = true
			return decision, nil
		}
		return Decision{}, fmt.Errorf("ratelimit: check counter: %w", err)
	}

	if out.Item != nil {
		var rec counterRecord
		if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
			l.logger.Warn("malformed rate limit counter", "client", clientID, "error", err)
		} else {
			decision.CurrentCount = rec.Count
		}
	}
	decision.Allowed = decision.CurrentCount < l.maxPerHour
	return decision, nil
}

// Record increments the current window's counter, creating it with a TTL on
// first use. The caller invokes this only after a lead is durably stored;
// failures are surfaced so the caller can log and move on.
func (l *Limiter) Record(ctx context.Context, clientID string) error {
	now := l.now()
	expiresAt := now.Truncate(window).Add(2 * window).Unix()

	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"windowKey": &types.AttributeValueMemberS{Value: windowKey(clientID, now)},
		},
		UpdateExpression: aws.String("SET expiresAt = if_not_exists(expiresAt, :expires) ADD #count :one"),
		ExpressionAttributeNames: map[string]string{
			"#count": "count",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":     &types.AttributeValueMemberN{Value: "1"},
			":expires": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("ratelimit: record request: %w", err)
	}
	return nil
}

// windowKey composes the counter key from the client id and the hour bucket.
func windowKey(clientID string, now time.Time) string {
	return fmt.Sprintf("%s#%d", clientID, now.Unix()/int64(window.Seconds()))
}

// minutesToNextWindow is how many minutes remain until the hour rolls over,
// always at least one.
func minutesToNextWindow(now time.Time) int {
	return 60 - now.UTC().Minute()
}
