package dynaval

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klauspost/compress/s2"
)

// Attribute names of stored page cursors.
const (
	AttributeNameCursorKey = "cursor_key"
	AttributeNameExpires   = "expires"
)

// Paginator handles pagination by converting last evaluated keys into string
// cursors for clients, and in turn converting client cursors into start keys
// to continue paging of query results.
type Paginator interface {
	// PageCursor generates a string token from the provided start key. Implementors
	// should return an empty token if the start key is nil or empty.
	PageCursor(ctx context.Context, lastkey Item) (string, error)
	// StartKey generates a dynamodb start key from the provided cursor. Implementors
	// should return a nil item if the cursor is an empty string.
	StartKey(ctx context.Context, cursor string) (Item, error)
}

// TablePaginator implements Paginator by storing and retrieving start keys in the same table.
type TablePaginator struct {
	table  *Table         // table configuration
	client DynamoDBClient // dynamodb client
}

// Paginator returns a Paginator to extract and generate client cursors.
func (t *Table) Paginator(client DynamoDBClient) Paginator {
	return &TablePaginator{
		table:  t,
		client: client,
	}
}

// cursorKey is the table key of the item storing cursor.
func (t *TablePaginator) cursorKey(cursor string) map[string]any {
	id := "page#" + cursor
	key := map[string]any{t.table.PartitionKey: id}
	if t.table.SortKey != "" {
		key[t.table.SortKey] = id
	}
	return key
}

// PageCursor implements Paginator by storing the last evaluated key into the
// dynamodb table. The key is kept as s2-compressed wire JSON in a binary
// attribute and expires after the table's PaginationTTL. If lastkey is empty,
// an empty string is returned.
func (t *TablePaginator) PageCursor(ctx context.Context, lastkey Item) (string, error) {
	if len(lastkey) == 0 {
		return "", nil
	}

	cursor, err := generateCursor()
	if err != nil {
		return "", fmt.Errorf("failed to generate cursor: %w", err)
	}

	data, err := MarshalItemWire(lastkey)
	if err != nil {
		return "", fmt.Errorf("failed to encode last key: %w", err)
	}

	record := t.cursorKey(cursor)
	// Compressed bytes can happen to be valid UTF-8; force the binary tag.
	record[AttributeNameCursorKey] = &types.AttributeValueMemberB{Value: s2.Encode(nil, data)}
	record[AttributeNameExpires] = t.table.now().Add(t.table.PaginationTTL).Unix()

	putInput, err := t.table.MarshalPut(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal page cursor: %w", err)
	}

	if _, err := t.client.PutItem(ctx, putInput); err != nil {
		return "", fmt.Errorf("failed to store page cursor: %w", err)
	}

	return cursor, nil
}

// StartKey implements Paginator by retrieving the item referenced by cursor.
// A missing or expired cursor yields a nil key.
func (t *TablePaginator) StartKey(ctx context.Context, cursor string) (Item, error) {
	if cursor == "" {
		return nil, nil
	}

	getInput, err := t.table.MarshalGet(t.cursorKey(cursor), WithConsistentRead())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal get request: %w", err)
	}

	result, err := t.client.GetItem(ctx, getInput)
	if err != nil {
		return nil, fmt.Errorf("failed to get page cursor: %w", err)
	}

	if result.Item == nil {
		// Cursor not found or expired
		return nil, nil
	}

	// Expired items linger until the service's TTL sweep removes them.
	if n, ok := result.Item[AttributeNameExpires].(*types.AttributeValueMemberN); ok {
		expires, err := strconv.ParseInt(n.Value, 10, 64)
		if err == nil && t.table.now().After(time.Unix(expires, 0)) {
			return nil, nil
		}
	}

	b, ok := result.Item[AttributeNameCursorKey].(*types.AttributeValueMemberB)
	if !ok || len(b.Value) == 0 {
		return nil, nil
	}

	data, err := s2.Decode(nil, b.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress last key: %w", err)
	}

	key, err := UnmarshalItemWire(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode last key: %w", err)
	}
	return key, nil
}

// MarshalStartKey marshals a page key into a page cursor to return to clients.
func MarshalStartKey(ctx context.Context, p Paginator, lastkey Item) (string, error) {
	return p.PageCursor(ctx, lastkey)
}

// UnmarshalStartKey unmarshals a page key from the provided cursor.
func UnmarshalStartKey(ctx context.Context, p Paginator, cursor string) (Item, error) {
	return p.StartKey(ctx, cursor)
}

// generateCursor creates a unique cursor string using current time and random bytes
func generateCursor() (string, error) {
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	combined := fmt.Sprintf("%d_%s", time.Now().UnixNano(), base64.RawURLEncoding.EncodeToString(randomBytes))
	return base64.RawURLEncoding.EncodeToString([]byte(combined)), nil
}

// StreamQuery yields every item of every page of the query. Iteration stops
// at the first error, which is yielded with a nil item.
func StreamQuery(ctx context.Context, client dynamodb.QueryAPIClient, input *dynamodb.QueryInput, optFns ...func(*dynamodb.QueryPaginatorOptions)) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		pages := dynamodb.NewQueryPaginator(client, input, optFns...)
		for pages.HasMorePages() {
			page, err := pages.NextPage(ctx)
			if err != nil {
				yield(nil, fmt.Errorf("failed to query page: %w", err))
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// StreamScan yields every item of every page of the scan. Iteration stops
// at the first error, which is yielded with a nil item.
func StreamScan(ctx context.Context, client dynamodb.ScanAPIClient, input *dynamodb.ScanInput, optFns ...func(*dynamodb.ScanPaginatorOptions)) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		pages := dynamodb.NewScanPaginator(client, input, optFns...)
		for pages.HasMorePages() {
			page, err := pages.NextPage(ctx)
			if err != nil {
				yield(nil, fmt.Errorf("failed to scan page: %w", err))
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// DecodeStream decodes each item of seq into a T. A decode error is yielded
// and ends the stream.
func DecodeStream[T any](seq iter.Seq2[Item, error], opts ...func(*DecodeOptions)) iter.Seq2[T, error] {
	d := NewDecoder(opts...)
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			var out T
			if err != nil {
				yield(out, err)
				return
			}
			if err := d.DecodeAs(item, &out); err != nil {
				yield(out, err)
				return
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}
