package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// PaymentEvent represents a structured payment audit document
type PaymentEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id"`
	Gateway         string    `json:"gateway"`
	Kind            string    `json:"kind"`
	Method          string    `json:"method,omitempty"`
	MerchantOrderID string    `json:"merchant_order_id,omitempty"`
	GatewayTradeID  string    `json:"gateway_trade_id,omitempty"`
	Status          string    `json:"status,omitempty"`
	AmountMinor     int64     `json:"amount_minor,omitempty"`
	Error           ErrorInfo `json:"error,omitempty"`
	ProcessingMs    int64     `json:"processing_time_ms,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Logger handles OpenSearch logging operations
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client: client,
	}
}

// LogPaymentEvent indexes a payment audit document
func (l *Logger) LogPaymentEvent(ctx context.Context, event PaymentEvent) error {
	if !l.client.IsEnabled() {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = uuid.New().String()
	}

	return l.index(ctx, l.client.GetLogIndexName(event.Gateway), event)
}

// LogSystemEvent indexes a system log document
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	if !l.client.IsEnabled() {
		return nil
	}
	return l.index(ctx, l.client.GetSystemIndexName(), entry)
}

func (l *Logger) index(ctx context.Context, indexName string, doc any) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}

	return nil
}

// SearchEvents searches for payment events based on criteria
func (l *Logger) SearchEvents(ctx context.Context, gateway string, query map[string]any) ([]PaymentEvent, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	indexName := l.client.GetLogIndexName(gateway)

	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": 100,
	}

	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch search error: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source PaymentEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	events := make([]PaymentEvent, len(searchResult.Hits.Hits))
	for i, hit := range searchResult.Hits.Hits {
		events[i] = hit.Source
	}

	return events, nil
}

// GetOrderEvents retrieves events for a specific merchant order
func (l *Logger) GetOrderEvents(ctx context.Context, gateway, merchantOrderID string) ([]PaymentEvent, error) {
	query := map[string]any{
		"match": map[string]any{
			"merchant_order_id": merchantOrderID,
		},
	}

	return l.SearchEvents(ctx, gateway, query)
}

// GetRecentErrorEvents retrieves recent error events for a gateway
func (l *Logger) GetRecentErrorEvents(ctx context.Context, gateway string, hours int) ([]PaymentEvent, error) {
	query := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{
					"range": map[string]any{
						"timestamp": map[string]any{
							"gte": fmt.Sprintf("now-%dh", hours),
						},
					},
				},
				{
					"exists": map[string]any{
						"field": "error.message",
					},
				},
			},
		},
	}

	return l.SearchEvents(ctx, gateway, query)
}
