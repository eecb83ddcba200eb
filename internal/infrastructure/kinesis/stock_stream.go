// Package kinesis reads the products table's change stream, delivered by
// the DynamoDB to Kinesis integration, and raises low-stock events.
package kinesis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/example/chat-storefront/internal/domain/catalog"
	bus "github.com/example/chat-storefront/internal/events"
)

// StockChange is one product write seen on the stream.
type StockChange struct {
	ProductID string
	VendorID  string
	Name      string
	Before    int
	After     int
	At        time.Time
}

// ConvertFromKinesisRecord decodes a Kinesis record carrying a DynamoDB
// stream record. Only MODIFY records that change stock_level yield a change.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*StockChange, error) {
	var streamRecord events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &streamRecord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	return ConvertFromDynamoDBStreamRecord(streamRecord)
}

// ConvertFromDynamoDBStreamRecord is ConvertFromKinesisRecord for records
// read straight from DynamoDB Streams.
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*StockChange, error) {
	if record.EventName != "MODIFY" {
		return nil, nil
	}
	oldImage, newImage := record.Change.OldImage, record.Change.NewImage
	if oldImage == nil || newImage == nil {
		return nil, fmt.Errorf("MODIFY record without both images (stream view must be NEW_AND_OLD_IMAGES)")
	}

	before, err := stockLevel(oldImage)
	if err != nil {
		return nil, fmt.Errorf("old image: %w", err)
	}
	after, err := stockLevel(newImage)
	if err != nil {
		return nil, fmt.Errorf("new image: %w", err)
	}
	if before == after {
		return nil, nil
	}

	change := &StockChange{
		ProductID: stringAttr(newImage, "id"),
		VendorID:  stringAttr(newImage, "vendor_id"),
		Name:      stringAttr(newImage, "name"),
		Before:    before,
		After:     after,
		At:        record.Change.ApproximateCreationDateTime.Time,
	}
	if change.ProductID == "" {
		return nil, fmt.Errorf("missing product id")
	}
	if ts := stringAttr(newImage, "updated_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			change.At = t
		}
	}
	return change, nil
}

// LowStockEvent reports the StockLow event for a change that takes stock
// from above threshold to at or below it. Restocks and further sales of an
// already-low product return false.
func (c StockChange) LowStockEvent(threshold int) (bus.Event, bool, error) {
	if _, wasLow := catalog.AlertLevelFor(c.Before, threshold); wasLow {
		return bus.Event{}, false, nil
	}
	level, isLow := catalog.AlertLevelFor(c.After, threshold)
	if !isLow {
		return bus.Event{}, false, nil
	}

	event, err := bus.New(bus.TypeStockLow, c.ProductID, bus.StockLow{
		ProductID:  c.ProductID,
		Name:       c.Name,
		StockLevel: c.After,
		Level:      string(level),
		ObservedAt: c.At,
	})
	if err != nil {
		return bus.Event{}, false, err
	}
	return event, true, nil
}

func stockLevel(image map[string]events.DynamoDBAttributeValue) (int, error) {
	v, ok := image["stock_level"]
	if !ok || v.DataType() != events.DataTypeNumber {
		return 0, fmt.Errorf("missing stock_level")
	}
	n, err := v.Integer()
	if err != nil {
		return 0, fmt.Errorf("parse stock_level: %w", err)
	}
	return int(n), nil
}

func stringAttr(image map[string]events.DynamoDBAttributeValue, name string) string {
	v, ok := image[name]
	if !ok || v.DataType() != events.DataTypeString {
		return ""
	}
	return v.String()
}
