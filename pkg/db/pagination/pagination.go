package pagination

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=20"`
}

type Cursor struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// Paginate trims the extra look-ahead row fetched by option.ApplyPagination
// and builds the page info from the last row kept.
func Paginate[T any](rows []*T, size int, extractCursor func(*T) Cursor) ([]*T, PageInfo) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if len(rows) == 0 {
		return rows, PageInfo{}
	}

	info := PageInfo{}
	if len(rows) > size {
		info.HasMore = true
		rows = rows[:size]
	}
	if info.HasMore {
		if token, err := EncodeCursor(extractCursor(rows[len(rows)-1])); err == nil {
			info.NextPageToken = token
		}
	}
	return rows, info
}
