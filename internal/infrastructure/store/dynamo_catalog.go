package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/chat-storefront/internal/domain/catalog"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoCatalog.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Reservations share the table under a partition of their own, so the
// product query of List never reads them.
const reservationPartition = "#reservations"

// DynamoCatalog stores products in a DynamoDB table keyed by
// (vendor_id, id). Stock changes use conditional writes.
type DynamoCatalog struct {
	client    DynamoAPI
	tableName string
	vendorID  string
}

// dynamoProduct represents the DynamoDB item structure
type dynamoProduct struct {
	VendorID    string   `dynamodbav:"vendor_id"`
	ID          string   `dynamodbav:"id"`
	Name        string   `dynamodbav:"name"`
	Price       int64    `dynamodbav:"price"`
	StockLevel  int      `dynamodbav:"stock_level"`
	Tags        []string `dynamodbav:"tags"`
	Description string   `dynamodbav:"description"`
	Category    string   `dynamodbav:"category"`
	CreatedAt   string   `dynamodbav:"created_at"`
	UpdatedAt   string   `dynamodbav:"updated_at"`
}

type dynamoReservation struct {
	VendorID  string `dynamodbav:"vendor_id"`
	ID        string `dynamodbav:"id"`
	ProductID string `dynamodbav:"product_id"`
	Quantity  int    `dynamodbav:"quantity"`
	Released  bool   `dynamodbav:"released"`
	CreatedAt string `dynamodbav:"created_at"`
}

func NewDynamoCatalog(client DynamoAPI, tableName, vendorID string) *DynamoCatalog {
	return &DynamoCatalog{client: client, tableName: tableName, vendorID: vendorID}
}

func (c *DynamoCatalog) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"vendor_id": &types.AttributeValueMemberS{Value: c.vendorID},
		"id":        &types.AttributeValueMemberS{Value: id},
	}
}

func (c *DynamoCatalog) reservationKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"vendor_id": &types.AttributeValueMemberS{Value: c.vendorID + reservationPartition},
		"id":        &types.AttributeValueMemberS{Value: id},
	}
}

func (c *DynamoCatalog) Create(ctx context.Context, p *catalog.Product) error {
	item := dynamoProduct{
		VendorID:    c.vendorID,
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		StockLevel:  p.StockLevel,
		Tags:        p.Tags,
		Description: p.Description,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put product: %w", err)
	}
	return nil
}

func (c *DynamoCatalog) Get(ctx context.Context, id string) (*catalog.Product, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, catalog.ErrProductNotFound
	}

	var item dynamoProduct
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	p := item.toProduct()
	return &p, nil
}

func (c *DynamoCatalog) List(ctx context.Context) ([]catalog.Product, error) {
	var (
		products []catalog.Product
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := c.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("vendor_id = :vid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":vid": &types.AttributeValueMemberS{Value: c.vendorID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query products: %w", err)
		}

		var items []dynamoProduct
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal products: %w", err)
		}
		for _, it := range items {
			products = append(products, it.toProduct())
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	// The sort key is the product id; catalog order is creation order.
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].ID < products[j].ID
		}
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
	return products, nil
}

func (c *DynamoCatalog) ConditionalDecrement(ctx context.Context, id string, qty int) (bool, error) {
	if qty <= 0 {
		return false, catalog.ErrInvalidQuantity
	}

	_, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 c.key(id),
		UpdateExpression:    aws.String("SET stock_level = stock_level - :q, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id) AND stock_level >= :q"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":   &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err == nil {
		return true, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	if _, err := c.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (c *DynamoCatalog) Restock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return catalog.ErrInvalidQuantity
	}

	_, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 c.key(id),
		UpdateExpression:    aws.String("SET stock_level = stock_level + :q, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":   &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return catalog.ErrProductNotFound
		}
		return fmt.Errorf("failed to restock: %w", err)
	}
	return nil
}

// Reserve writes the reservation item and takes the stock in one
// transaction. A reservation item that already exists means an earlier
// call went through.
func (c *DynamoCatalog) Reserve(ctx context.Context, reservationID, id string, qty int) (bool, error) {
	if qty <= 0 {
		return false, catalog.ErrInvalidQuantity
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	av, err := attributevalue.MarshalMap(dynamoReservation{
		VendorID:  c.vendorID + reservationPartition,
		ID:        reservationID,
		ProductID: id,
		Quantity:  qty,
		CreatedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal reservation: %w", err)
	}

	_, err = c.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
			{Update: &types.Update{
				TableName:           aws.String(c.tableName),
				Key:                 c.key(id),
				UpdateExpression:    aws.String("SET stock_level = stock_level - :q, updated_at = :now"),
				ConditionExpression: aws.String("attribute_exists(id) AND stock_level >= :q"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":   &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
					":now": &types.AttributeValueMemberS{Value: now},
				},
			}},
		},
	})
	if err == nil {
		return true, nil
	}

	failed, ok := failedConditions(err)
	switch {
	case !ok:
		return false, fmt.Errorf("failed to reserve stock: %w", err)
	case failed[0]:
		return true, nil
	case failed[1]:
		if _, err := c.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	default:
		return false, fmt.Errorf("failed to reserve stock: %w", err)
	}
}

func (c *DynamoCatalog) Release(ctx context.Context, reservationID string) error {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.reservationKey(reservationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to get reservation: %w", err)
	}
	if len(out.Item) == 0 {
		return nil
	}
	var r dynamoReservation
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return fmt.Errorf("failed to unmarshal reservation: %w", err)
	}
	if r.Released {
		return nil
	}

	_, err = c.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           aws.String(c.tableName),
				Key:                 c.reservationKey(reservationID),
				UpdateExpression:    aws.String("SET released = :t"),
				ConditionExpression: aws.String("released = :f"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":t": &types.AttributeValueMemberBOOL{Value: true},
					":f": &types.AttributeValueMemberBOOL{Value: false},
				},
			}},
			{Update: &types.Update{
				TableName:           aws.String(c.tableName),
				Key:                 c.key(r.ProductID),
				UpdateExpression:    aws.String("SET stock_level = stock_level + :q, updated_at = :now"),
				ConditionExpression: aws.String("attribute_exists(id)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":   &types.AttributeValueMemberN{Value: strconv.Itoa(r.Quantity)},
					":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
				},
			}},
		},
	})
	if err == nil {
		return nil
	}

	failed, ok := failedConditions(err)
	switch {
	case !ok:
		return fmt.Errorf("failed to release reservation: %w", err)
	case failed[0]:
		return nil // released concurrently
	case failed[1]:
		return catalog.ErrProductNotFound
	default:
		return fmt.Errorf("failed to release reservation: %w", err)
	}
}

// failedConditions reports, for the two items of a transaction, whether
// each one's condition check cancelled it. ok is false for other errors.
func failedConditions(err error) (failed [2]bool, ok bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return failed, false
	}
	for i, reason := range tce.CancellationReasons {
		if i < len(failed) {
			failed[i] = aws.ToString(reason.Code) == "ConditionalCheckFailed"
		}
	}
	return failed, true
}

func (it dynamoProduct) toProduct() catalog.Product {
	created, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	return catalog.Product{
		ID:          it.ID,
		Name:        it.Name,
		Price:       it.Price,
		StockLevel:  it.StockLevel,
		Tags:        it.Tags,
		Description: it.Description,
		Category:    it.Category,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
}
