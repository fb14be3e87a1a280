package client

import (
	"context"
	"github.com/elastic/go-elasticsearch/v8"
)

type RefreshRate string

const (
	// Wait for the changes made by the request to be made visible by a refresh before replying.
	Wait RefreshRate = "wait_for"
	// Immediate Refresh the relevant primary and replica shards (not the whole index) immediately after the operation occurs.
	Immediate RefreshRate = "true"
	// Async Take no refresh related actions. The changes made by this request will be made visible at some point after the request returns.
	Async RefreshRate = "false"
)

type ElasticsearchClient interface {
	// BulkIndex indexes (inserts or replaces) multiple documents in the same index
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-bulk.html
	BulkIndex(ctx context.Context, metaInfo []MetaMap, documentInfo []DocumentMap, index string) error
	// Index indexes a single document in the index
	Index(ctx context.Context, metaInfo MetaMap, documentInfo DocumentMap, index string) error
	// Count counts the number of documents in the index matching the query
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/search-count.html
	Count(ctx context.Context, query string, indices []string) (int64, error)
}

type ElasticsearchClientImpl struct {
	es          *elasticsearch.Client
	refreshRate string
}

func NewElasticsearchClientImpl(es *elasticsearch.Client, refreshRate RefreshRate) *ElasticsearchClientImpl {
	return &ElasticsearchClientImpl{es: es, refreshRate: string(refreshRate)}
}
