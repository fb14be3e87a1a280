package bootstrapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
	"time"
)

const (
	retries  = 30
	waitTime = 5 * time.Second
)

const resourceAlreadyExists = "resource_already_exists_exception"

type Bootstrapper struct {
	esClient *elasticsearch.Client
	retries  int
	waitTime time.Duration
	logger   *zap.Logger
}

func NewBootstrapper(esClient *elasticsearch.Client, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		esClient: esClient,
		retries:  retries,
		waitTime: waitTime,
		logger:   logger,
	}
}

// BootstrapElasticsearch waits for the cluster and creates the trace index
// unless it already exists.
func (bs *Bootstrapper) BootstrapElasticsearch(ctx context.Context, traceIndexName string) error {
	if err := bs.waitForElasticsearch(ctx); err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	if err := bs.createIndex(ctx, traceIndexName, traceIndex); err != nil {
		return fmt.Errorf("error creating trace index: %w", err)
	}
	return nil
}

func (bs *Bootstrapper) waitForElasticsearch(ctx context.Context) error {
	for i := 0; i < bs.retries; i++ {
		res, err := bs.esClient.Info(bs.esClient.Info.WithContext(ctx))
		if err == nil {
			res.Body.Close()
			if res.StatusCode == 200 {
				bs.logger.Info("Elasticsearch is available")
				return nil
			}
		}
		bs.logger.Warn(fmt.Sprintf("Elasticsearch not available (attempt %d/%d), retrying...", i+1, bs.retries))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bs.waitTime):
		}
	}

	return fmt.Errorf("Elasticsearch is not available after %d attempts", bs.retries)
}

func (bs *Bootstrapper) createIndex(ctx context.Context, indexName string, index map[string]interface{}) error {
	body, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("error marshaling index input during bootstrap: %w", err)
	}

	res, err := bs.esClient.Indices.Create(
		indexName,
		bs.esClient.Indices.Create.WithBody(bytes.NewReader(body)),
		bs.esClient.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error creating index during bootstrap %s: %w", indexName, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var errorResponse struct {
			Error struct {
				Type string `json:"type"`
			} `json:"error"`
		}
		if json.NewDecoder(res.Body).Decode(&errorResponse) == nil && errorResponse.Error.Type == resourceAlreadyExists {
			bs.logger.Info("Index already exists", zap.String("index_name", indexName))
			return nil
		}
		return fmt.Errorf("error response for index %s: %s", indexName, res.Status())
	}

	bs.logger.Info("Successfully created index", zap.String("index_name", indexName))
	return nil
}
