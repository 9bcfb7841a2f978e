package api

import (
	"encoding/json"
	"fmt"
)

// Envelope is the uniform JSON wrapper returned by every API
// response: {success, message?, data?, pagination?, errors?}.
type Envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Data       json.RawMessage     `json:"data,omitempty"`
	Pagination *Pagination         `json:"pagination,omitempty"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

// Pagination describes the page window of a collection response.
type Pagination struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// decodeData unmarshals the envelope's data field into result. A nil
// result discards the data. A malformed envelope body is the caller's
// concern and is reported as-is rather than normalized.
func decodeData(env *Envelope, result interface{}) error {
	if result == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("decoding envelope data: %w", err)
	}
	return nil
}
