package model

type BulkResponse struct {
	Took   int                   `json:"took"`
	Errors bool                  `json:"errors"`
	Items  []map[string]BulkItem `json:"items"`
}

type BulkItem struct {
	Index  string     `json:"_index"`
	ID     string     `json:"_id"`
	Status int        `json:"status"`
	Error  *ItemError `json:"error,omitempty"`
}

type ItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}
