package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/product"
)

// DynamoStore implements Store on DynamoDB. The placement's atomic unit is a
// TransactWriteItems call: one conditional stock decrement per product row
// (stock >= n) plus the order put. DynamoDB rejects the whole transaction if
// any condition fails, which is exactly the all-or-nothing the placement
// needs without any locking on our side.
type DynamoStore struct {
	client        *dynamodb.Client
	productsTable string
	ordersTable   string
}

func NewDynamoStore(client *dynamodb.Client, productsTable, ordersTable string) *DynamoStore {
	return &DynamoStore{
		client:        client,
		productsTable: productsTable,
		ordersTable:   ordersTable,
	}
}

type dynamoProduct struct {
	ID          string `dynamodbav:"id"`
	Name        string `dynamodbav:"name"`
	Description string `dynamodbav:"description"`
	Price       int64  `dynamodbav:"price"`
	SalePrice   int64  `dynamodbav:"sale_price"`
	Stock       int    `dynamodbav:"stock"`
	CreatedAt   string `dynamodbav:"created_at"`
	UpdatedAt   string `dynamodbav:"updated_at"`
}

type dynamoOrder struct {
	ID           string `dynamodbav:"id"`
	CustomerName string `dynamodbav:"customer_name"`
	Status       string `dynamodbav:"status"`
	Total        int64  `dynamodbav:"total"`
	Items        string `dynamodbav:"items"` // JSON-encoded []order.Item
	CreatedAt    string `dynamodbav:"created_at"`
	UpdatedAt    string `dynamodbav:"updated_at"`
}

func (s *DynamoStore) CreateOrder(ctx context.Context, customerName string, items []ItemRequest) (*order.Order, error) {
	// Resolve and pre-check every product with consistent reads. The real
	// guard is the conditional write below; this pass exists to fail fast
	// with a precise error before attempting the transaction.
	resolved := make(map[string]*product.Product, len(items))
	for _, item := range items {
		p, err := s.getProduct(ctx, item.ProductID, true)
		if err != nil {
			return nil, err
		}
		if p.Stock < item.Quantity {
			return nil, &StockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}
		resolved[item.ProductID] = p
	}

	now := time.Now()
	orderItems := make([]order.Item, 0, len(items))
	for _, item := range items {
		p := resolved[item.ProductID]
		orderItems = append(orderItems, order.Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			Price:     p.EffectivePrice(),
		})
	}

	o := &order.Order{
		ID:           uuid.New().String(),
		CustomerName: customerName,
		Status:       order.StatusNewRequest,
		Items:        orderItems,
		Total:        order.ItemsTotal(orderItems),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal order items: %w", err)
	}

	av, err := attributevalue.MarshalMap(dynamoOrder{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		Status:       string(o.Status),
		Total:        o.Total,
		Items:        string(itemsJSON),
		CreatedAt:    now.Format(time.RFC3339Nano),
		UpdatedAt:    now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	writes := make([]types.TransactWriteItem, 0, len(items)+1)
	for _, item := range items {
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName: aws.String(s.productsTable),
				Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberS{Value: item.ProductID},
				},
				UpdateExpression:    aws.String("SET stock = stock - :q, updated_at = :u"),
				ConditionExpression: aws.String("attribute_exists(id) AND stock >= :q"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", item.Quantity)},
					":u": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
				},
			},
		})
	}
	writes = append(writes, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.ordersTable),
			Item:      av,
		},
	})

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err != nil {
		return nil, s.mapTransactError(ctx, err, items)
	}

	return o, nil
}

// mapTransactError turns a cancelled placement transaction into the domain
// error the caller can act on: a StockError re-read from current state for a
// failed stock condition, ErrConflict for transactional contention.
func (s *DynamoStore) mapTransactError(ctx context.Context, err error, items []ItemRequest) error {
	var cancelled *types.TransactionCanceledException
	if !errors.As(err, &cancelled) {
		var conflict *types.TransactionConflictException
		if errors.As(err, &conflict) {
			return ErrConflict
		}
		return fmt.Errorf("placement transaction: %w", err)
	}

	for i, reason := range cancelled.CancellationReasons {
		if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" || i >= len(items) {
			continue
		}
		item := items[i]
		p, getErr := s.getProduct(ctx, item.ProductID, true)
		if getErr != nil {
			return getErr
		}
		return &StockError{
			ProductID: item.ProductID,
			Requested: item.Quantity,
			Available: p.Stock,
		}
	}
	return ErrConflict
}

func (s *DynamoStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.ordersTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if result.Item == nil {
		return nil, order.ErrNotFound
	}
	return unmarshalDynamoOrder(result.Item)
}

func (s *DynamoStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	var orders []*order.Order
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.ordersTable),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		for _, item := range page.Items {
			o, err := unmarshalDynamoOrder(item)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *DynamoStore) UpdateOrderStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.Status.Transition(status); err != nil {
		return nil, err
	}

	now := time.Now()
	// The condition pins the status we validated against, so a concurrent
	// status change surfaces as a conflict instead of a silent overwrite.
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.ordersTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET #st = :new, updated_at = :u"),
		ConditionExpression: aws.String("#st = :old"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new": &types.AttributeValueMemberS{Value: string(status)},
			":old": &types.AttributeValueMemberS{Value: string(o.Status)},
			":u":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	o.Status = status
	o.UpdatedAt = now
	return o, nil
}

func (s *DynamoStore) PutProduct(ctx context.Context, p *product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	av, err := attributevalue.MarshalMap(dynamoProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		SalePrice:   p.SalePrice,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.productsTable),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

func (s *DynamoStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return s.getProduct(ctx, id, false)
}

func (s *DynamoStore) ListProducts(ctx context.Context) ([]*product.Product, error) {
	var products []*product.Product
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.productsTable),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		for _, item := range page.Items {
			p, err := unmarshalDynamoProduct(item)
			if err != nil {
				return nil, err
			}
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
	return products, nil
}

func (s *DynamoStore) getProduct(ctx context.Context, id string, consistent bool) (*product.Product, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.productsTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(consistent),
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("%w: %s", product.ErrNotFound, id)
	}
	return unmarshalDynamoProduct(result.Item)
}

func unmarshalDynamoProduct(item map[string]types.AttributeValue) (*product.Product, error) {
	var dp dynamoProduct
	if err := attributevalue.UnmarshalMap(item, &dp); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, dp.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, dp.UpdatedAt)
	return &product.Product{
		ID:          dp.ID,
		Name:        dp.Name,
		Description: dp.Description,
		Price:       dp.Price,
		SalePrice:   dp.SalePrice,
		Stock:       dp.Stock,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func unmarshalDynamoOrder(item map[string]types.AttributeValue) (*order.Order, error) {
	var do dynamoOrder
	if err := attributevalue.UnmarshalMap(item, &do); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}

	var items []order.Item
	if do.Items != "" {
		if err := json.Unmarshal([]byte(do.Items), &items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, do.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, do.UpdatedAt)
	return &order.Order{
		ID:           do.ID,
		CustomerName: do.CustomerName,
		Status:       order.Status(do.Status),
		Items:        items,
		Total:        do.Total,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}
