package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownShape indicates the response matched neither the current
	// envelope nor the legacy page format.
	ErrUnknownShape = errors.New("unrecognized response shape")

	// ErrBackend indicates the backend reported success=false.
	ErrBackend = errors.New("backend error")
)

// resultEnvelope covers both wire formats the backend has shipped:
//
//	current: {"success": true, "data": {"items": [...], "hasMore": true, "pagination": {"total": 120}}}
//	legacy:  {"images": [...], "hasMore": true, "total": 120}
//
// Pointer fields distinguish "absent" from "zero value" so shape
// detection never silently defaults.
type resultEnvelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Data    *struct {
		Items      []ImageRecord `json:"items"`
		HasMore    bool          `json:"hasMore"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	} `json:"data"`

	Images  []ImageRecord `json:"images"`
	HasMore *bool         `json:"hasMore"`
	Total   *int          `json:"total"`
}

// ParseResultPage normalizes a raw search/feed response body into a
// ResultPage. Both the current envelope and the legacy flat format are
// accepted; anything else fails with ErrUnknownShape.
func ParseResultPage(body []byte) (ResultPage, error) {
	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ResultPage{}, fmt.Errorf("%w: %v", ErrUnknownShape, err)
	}

	switch {
	case env.Success != nil:
		if !*env.Success {
			if env.Error != "" {
				return ResultPage{}, fmt.Errorf("%w: %s", ErrBackend, env.Error)
			}
			return ResultPage{}, ErrBackend
		}
		if env.Data == nil {
			return ResultPage{}, fmt.Errorf("%w: success envelope without data", ErrUnknownShape)
		}
		return ResultPage{
			Items:   env.Data.Items,
			HasMore: env.Data.HasMore,
			Total:   env.Data.Pagination.Total,
		}, nil

	case env.Images != nil:
		page := ResultPage{Items: env.Images}
		if env.HasMore != nil {
			page.HasMore = *env.HasMore
		}
		if env.Total != nil {
			page.Total = *env.Total
		}
		return page, nil
	}

	return ResultPage{}, ErrUnknownShape
}

// dataEnvelope is the current envelope for non-page payloads.
type dataEnvelope struct {
	Success *bool           `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// ParseData decodes a {"success": true, "data": ...} envelope into T.
// A success=false envelope yields ErrBackend with the server message.
func ParseData[T any](body []byte) (T, error) {
	var zero T

	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnknownShape, err)
	}
	if env.Success == nil {
		return zero, ErrUnknownShape
	}
	if !*env.Success {
		if env.Error != "" {
			return zero, fmt.Errorf("%w: %s", ErrBackend, env.Error)
		}
		return zero, ErrBackend
	}
	if env.Data == nil {
		return zero, fmt.Errorf("%w: success envelope without data", ErrUnknownShape)
	}

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, fmt.Errorf("decode data: %w", err)
	}
	return out, nil
}
