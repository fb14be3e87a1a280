package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/elasticsearch/model"
	"strings"
)

func (a *ElasticsearchClientImpl) BulkIndex(
	ctx context.Context,
	metaInfo []MetaMap,
	documentInfo []DocumentMap,
	index string,
) error {
	var buf bytes.Buffer
	for i, document := range documentInfo {
		var meta MetaMap
		if metaInfo != nil && i < len(metaInfo) {
			meta = metaInfo[i]
		} else {
			meta = MetaMap{"index": map[string]interface{}{}}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		dataJSON, err := json.Marshal(document)
		if err != nil {
			return fmt.Errorf("error marshaling data to bulk index: %w", err)
		}
		buf.Write(dataJSON)
		buf.WriteByte('\n')
	}

	res, err := a.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		a.es.Bulk.WithIndex(index),
		a.es.Bulk.WithContext(ctx),
		a.es.Bulk.WithRefresh(a.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var bulkResponse model.BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResponse.Errors {
		return fmt.Errorf("bulk index error: %s", itemErrors(bulkResponse))
	}
	return nil
}

func (a *ElasticsearchClientImpl) Index(
	ctx context.Context,
	metaInfo MetaMap,
	documentInfo DocumentMap,
	index string,
) error {
	if metaInfo == nil {
		return a.BulkIndex(ctx, nil, []DocumentMap{documentInfo}, index)
	}
	return a.BulkIndex(ctx, []MetaMap{metaInfo}, []DocumentMap{documentInfo}, index)
}

func itemErrors(response model.BulkResponse) string {
	var reasons []string
	for _, item := range response.Items {
		for action, result := range item {
			if result.Error != nil {
				reasons = append(
					reasons,
					fmt.Sprintf("%s %s: %s (%s)", action, result.ID, result.Error.Reason, result.Error.Type),
				)
			}
		}
	}
	return strings.Join(reasons, "; ")
}
