package httpserver

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultPageSize = 10
	maxPageSize     = 30
	maxPage         = 1 << 20
)

var errInvalidPage = errors.New("page and pageSize must be non-negative integers")

type pageRequest struct {
	Page int
	Size int
}

func (p pageRequest) Offset() int {
	return p.Page * p.Size
}

// parsePage reads page and pageSize. Sizes of zero or above the maximum fall
// back to the default; anything that is not a plain decimal is rejected.
func parsePage(query url.Values) (pageRequest, error) {
	req := pageRequest{Page: 0, Size: defaultPageSize}

	if raw, ok := queryValue(query, "pageSize", "page_size"); ok {
		size, err := parseDigits(raw)
		if err != nil {
			return req, err
		}
		if size > 0 && size <= maxPageSize {
			req.Size = size
		}
	}
	if raw, ok := queryValue(query, "page"); ok {
		page, err := parseDigits(raw)
		if err != nil {
			return req, err
		}
		if page > maxPage {
			return req, errInvalidPage
		}
		req.Page = page
	}
	return req, nil
}

func queryValue(query url.Values, keys ...string) (string, bool) {
	for _, key := range keys {
		if vals, ok := query[key]; ok && len(vals) > 0 {
			return strings.TrimSpace(vals[0]), true
		}
	}
	return "", false
}

func parseDigits(raw string) (int, error) {
	if raw == "" {
		return 0, errInvalidPage
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, errInvalidPage
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errInvalidPage
	}
	return n, nil
}

type pageInfo struct {
	Total    int  `json:"total"`
	PageSize int  `json:"page_size"`
	Page     int  `json:"page"`
	PrevPage *int `json:"prev_page"`
	NextPage *int `json:"next_page"`
}

// newPageInfo computes neighbours of the requested page. prev is clamped to
// the last existing page so a request past the end still links back.
func newPageInfo(req pageRequest, total int) pageInfo {
	info := pageInfo{Total: total, PageSize: req.Size, Page: req.Page}
	if total <= 0 || req.Size <= 0 {
		return info
	}
	totalPages := (total + req.Size - 1) / req.Size
	if req.Page > 0 {
		prev := req.Page - 1
		if prev > totalPages-1 {
			prev = totalPages - 1
		}
		info.PrevPage = &prev
	}
	if req.Page+1 < totalPages {
		next := req.Page + 1
		info.NextPage = &next
	}
	return info
}

type pageResponse[T any] struct {
	pageInfo
	Results []T `json:"results"`
}

func newPageResponse[T any](req pageRequest, total int, results []T) pageResponse[T] {
	if results == nil {
		results = []T{}
	}
	return pageResponse[T]{pageInfo: newPageInfo(req, total), Results: results}
}
