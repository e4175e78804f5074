// Package dynamostore keeps claims in a DynamoDB table whose partition key is
// claim_key. expires_at is written as epoch seconds so the table's TTL
// setting can sweep abandoned claims.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/goliatone/go-ingest/core"
)

const (
	attrClaimKey  = "claim_key"
	attrStatus    = "status"
	attrOwner     = "owner"
	attrCreatedAt = "created_at"
	attrUpdatedAt = "updated_at"
	attrExpiresAt = "expires_at"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type ClaimStore struct {
	client API
	table  string
	Now    func() time.Time
}

func NewClaimStore(client API, table string) (*ClaimStore, error) {
	if client == nil {
		return nil, fmt.Errorf("dynamostore: client is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, fmt.Errorf("dynamostore: table is required")
	}
	return &ClaimStore{
		client: client,
		table:  table,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *ClaimStore) InsertIfAbsent(ctx context.Context, key string, fields core.ClaimFields, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("dynamostore: claim key is required")
	}
	now := s.now()
	createdAt := fields.CreatedAt.UTC()
	if fields.CreatedAt.IsZero() {
		createdAt = now
	}
	status := fields.Status
	if status == "" {
		status = core.ClaimStatusProcessing
	}
	item := map[string]types.AttributeValue{
		attrClaimKey:  &types.AttributeValueMemberS{Value: key},
		attrStatus:    &types.AttributeValueMemberS{Value: string(status)},
		attrOwner:     &types.AttributeValueMemberS{Value: fields.Owner},
		attrCreatedAt: &types.AttributeValueMemberS{Value: createdAt.Format(time.RFC3339Nano)},
		attrUpdatedAt: &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	if ttl > 0 {
		item[attrExpiresAt] = &types.AttributeValueMemberN{
			Value: strconv.FormatInt(createdAt.Add(ttl).Unix(), 10),
		}
	}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#key)"),
		ExpressionAttributeNames: map[string]string{
			"#key": attrClaimKey,
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return core.ErrAlreadyExists
		}
		return fmt.Errorf("dynamostore: put claim: %w", err)
	}
	return nil
}

func (s *ClaimStore) UpdateStatus(ctx context.Context, key string, status core.ClaimStatus) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrClaimKey: &types.AttributeValueMemberS{Value: strings.TrimSpace(key)},
		},
		UpdateExpression:    aws.String("SET #status = :status, #updated = :updated"),
		ConditionExpression: aws.String("attribute_exists(#key)"),
		ExpressionAttributeNames: map[string]string{
			"#key":     attrClaimKey,
			"#status":  attrStatus,
			"#updated": attrUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(status)},
			":updated": &types.AttributeValueMemberS{Value: s.now().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return core.ErrClaimNotFound
		}
		return fmt.Errorf("dynamostore: update claim status: %w", err)
	}
	return nil
}

func (s *ClaimStore) GetClaim(ctx context.Context, key string) (core.Claim, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrClaimKey: &types.AttributeValueMemberS{Value: strings.TrimSpace(key)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return core.Claim{}, fmt.Errorf("dynamostore: get claim: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return core.Claim{}, core.ErrClaimNotFound
	}
	return claimFromItem(out.Item)
}

func (s *ClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func claimFromItem(item map[string]types.AttributeValue) (core.Claim, error) {
	claim := core.Claim{
		Key:    stringAttr(item, attrClaimKey),
		Status: core.ClaimStatus(stringAttr(item, attrStatus)),
		Owner:  stringAttr(item, attrOwner),
	}
	var err error
	if claim.CreatedAt, err = timeAttr(item, attrCreatedAt); err != nil {
		return core.Claim{}, err
	}
	if claim.UpdatedAt, err = timeAttr(item, attrUpdatedAt); err != nil {
		return core.Claim{}, err
	}
	if member, ok := item[attrExpiresAt].(*types.AttributeValueMemberN); ok {
		seconds, err := strconv.ParseInt(member.Value, 10, 64)
		if err != nil {
			return core.Claim{}, fmt.Errorf("dynamostore: decode %s: %w", attrExpiresAt, err)
		}
		claim.ExpiresAt = time.Unix(seconds, 0).UTC()
	}
	return claim, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if member, ok := item[name].(*types.AttributeValueMemberS); ok {
		return member.Value
	}
	return ""
}

func timeAttr(item map[string]types.AttributeValue, name string) (time.Time, error) {
	value := stringAttr(item, name)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("dynamostore: decode %s: %w", name, err)
	}
	return parsed.UTC(), nil
}

func isConditionalCheckFailed(err error) bool {
	var conditional *types.ConditionalCheckFailedException
	return errors.As(err, &conditional)
}
