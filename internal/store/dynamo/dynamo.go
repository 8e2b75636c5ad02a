// Package dynamo keeps the categories_metadata index in a DynamoDB table.
//
// Each category field is one item keyed by "field". Its values are a string set
// mutated with ADD and DELETE update expressions, which DynamoDB applies
// atomically per item. A set cannot be empty, so removing the last value drops
// the attribute and the field reads back with no values. Sets are unordered and
// values come back sorted.
//
// Table schema:
//   - Partition key: field (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name categories_metadata \
//	  --attribute-definitions AttributeName=field,AttributeType=S \
//	  --key-schema AttributeName=field,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

const (
	keyAttr       = "field"
	valuesAttr    = "values"
	updatedAtAttr = "updated_at"
)

var _ store.CategoryStore = (*Index)(nil)

// DDBClient is the subset of the DynamoDB API the index uses.
type DDBClient interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Index is a [store.CategoryStore] on DynamoDB.
type Index struct {
	client DDBClient
	table  string
	now    func() time.Time
}

// New creates an index over table.
func New(client DDBClient, table string) *Index {
	return &Index{client: client, table: table, now: time.Now}
}

// NewClient builds a DynamoDB client from the default credential chain. A non-empty
// endpoint overrides the service URL, for DynamoDB Local.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load aws config: %v", shared.ErrInvalidConfig, err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// EnsureTable creates the table when it does not exist.
func (x *Index) EnsureTable(ctx context.Context) error {
	_, err := x.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(x.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table: %w", err)
	}

	_, err = x.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(x.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(keyAttr), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(keyAttr), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func key(field models.Field) (map[string]types.AttributeValue, error) {
	if _, ok := models.LookupField(string(field)); !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidField, field)
	}
	return map[string]types.AttributeValue{keyAttr: &types.AttributeValueMemberS{Value: string(field)}}, nil
}

func (x *Index) update(ctx context.Context, field models.Field, action string, values []string) error {
	k, err := key(field)
	if err != nil {
		return err
	}

	expr := "SET #updated = :now"
	names := map[string]string{"#updated": updatedAtAttr}
	attrs := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberS{Value: x.now().UTC().Format(time.RFC3339Nano)},
	}
	if len(values) > 0 {
		expr += " " + action + " #values :v"
		names["#values"] = valuesAttr
		attrs[":v"] = &types.AttributeValueMemberSS{Value: values}
	}

	_, err = x.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(x.table),
		Key:                       k,
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to update category %s: %w", field, err)
	}
	return nil
}

// UnionCategory adds values to field's set.
func (x *Index) UnionCategory(ctx context.Context, field models.Field, values ...string) error {
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && !slices.Contains(clean, v) {
			clean = append(clean, v)
		}
	}
	return x.update(ctx, field, "ADD", clean)
}

// RemoveCategory deletes value from field's set.
func (x *Index) RemoveCategory(ctx context.Context, field models.Field, value string) error {
	if value == "" {
		return x.update(ctx, field, "DELETE", nil)
	}
	return x.update(ctx, field, "DELETE", []string{value})
}

func decodeItem(item map[string]types.AttributeValue) (*models.CategoryIndex, error) {
	k, ok := item[keyAttr].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("invalid field attribute in DynamoDB")
	}

	entry := &models.CategoryIndex{Field: models.Field(k.Value), Values: []string{}}
	if set, ok := item[valuesAttr].(*types.AttributeValueMemberSS); ok {
		entry.Values = slices.Sorted(slices.Values(set.Value))
	}
	if ts, ok := item[updatedAtAttr].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts.Value); err == nil {
			entry.UpdatedAt = t
		}
	}
	return entry, nil
}

// GetCategory reads field's item with a strongly consistent read.
func (x *Index) GetCategory(ctx context.Context, field models.Field) (*models.CategoryIndex, error) {
	k, err := key(field)
	if err != nil {
		return nil, err
	}

	out, err := x.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(x.table),
		Key:            k,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get category %s: %w", field, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: category %s", shared.ErrNotFound, field)
	}
	return decodeItem(out.Item)
}

// ListCategories scans the table and returns entries ordered by field name.
func (x *Index) ListCategories(ctx context.Context) ([]*models.CategoryIndex, error) {
	entries := []*models.CategoryIndex{}

	p := dynamodb.NewScanPaginator(x.client, &dynamodb.ScanInput{TableName: aws.String(x.table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan categories: %w", err)
		}
		for _, item := range page.Items {
			entry, err := decodeItem(item)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}

	slices.SortFunc(entries, func(a, b *models.CategoryIndex) int {
		return strings.Compare(string(a.Field), string(b.Field))
	})
	return entries, nil
}
