package bootstrapper

const DefaultTraceIndexName = "trace_index"

var traceIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"tenant_id": map[string]interface{}{
				"type": "keyword",
			},
			"trace_id": map[string]interface{}{
				"type": "keyword",
			},
			"start_time": map[string]interface{}{
				"type": "date",
			},
			"end_time": map[string]interface{}{
				"type": "date",
			},
			"emitted_at": map[string]interface{}{
				"type": "date",
			},
			"span_count": map[string]interface{}{
				"type": "integer",
			},
			"spans": map[string]interface{}{
				"type": "nested",
				"properties": map[string]interface{}{
					"span_id": map[string]interface{}{
						"type": "keyword",
					},
					"parent_span_id": map[string]interface{}{
						"type": "keyword",
					},
					"trace_id": map[string]interface{}{
						"type": "keyword",
					},
					"service_name": map[string]interface{}{
						"type": "keyword",
					},
					"start_time": map[string]interface{}{
						"type": "date",
					},
					"end_time": map[string]interface{}{
						"type": "date",
					},
					"action_name": map[string]interface{}{
						"type": "keyword",
					},
					"span_kind": map[string]interface{}{
						"type": "keyword",
					},
					"status": map[string]interface{}{
						"properties": map[string]interface{}{
							"message": map[string]interface{}{
								"type": "text",
							},
							"code": map[string]interface{}{
								"type": "keyword",
							},
						},
					},
					"attributes": map[string]interface{}{
						"type": "flattened",
					},
					"events": map[string]interface{}{
						"type": "nested",
						"properties": map[string]interface{}{
							"name": map[string]interface{}{
								"type": "keyword",
							},
							"attributes": map[string]interface{}{
								"type": "flattened",
							},
							"timestamp": map[string]interface{}{
								"type": "date",
							},
						},
					},
				},
			},
		},
	},
}
