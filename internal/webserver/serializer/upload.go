package serializer

import (
	"github.com/mdouchement/imgstore/internal/webserver/service"
)

// An UploadResult is the rendered outcome of a single file ingest.
type UploadResult struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
	Status string `json:"status"`
}

// UploadResults renders the outcome of an upload batch.
func UploadResults(results []*service.Result) []UploadResult {
	payload := make([]UploadResult, 0, len(results))

	for _, result := range results {
		r := UploadResult{
			Name:   result.Name,
			URL:    result.URL,
			Status: result.Status,
		}
		if result.Err != nil {
			r.Error = result.Err.Error()
		}
		payload = append(payload, r)
	}

	return payload
}
