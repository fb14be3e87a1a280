//go:build integration

package elasticsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/elasticsearch/bootstrapper"
	"github.com/elastic/go-elasticsearch/v8"
)

func deleteAllDocuments(es *elasticsearch.Client) error {
	queryJSON, _ := json.Marshal(getAllQuery())
	res, err := es.DeleteByQuery(
		[]string{bootstrapper.DefaultTraceIndexName},
		bytes.NewReader(queryJSON),
		es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("failed to delete documents by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to delete documents in index %s", res.String())
	}
	return nil
}

func getAllQuery() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
	}
}

func getTenantQuery(tenantID string) string {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"tenant_id": tenantID,
			},
		},
	}
	queryBody, err := json.Marshal(query)
	if err != nil {
		panic(err)
	}
	return string(queryBody)
}
