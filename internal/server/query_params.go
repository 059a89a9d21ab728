package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/referral/pkg/db/pagination"
)

func parseSnowflakeParam(c *gin.Context, name string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(c.Param(name))
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return 0, newValidationError(name, "invalid_id", name+" is invalid")
	}
	return parsed, nil
}

// parsePagination binds page_token and page_size, clamping the size to
// [1, MaxPageSize].
func parsePagination(c *gin.Context) (pagination.Pagination, error) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		return pagination.Pagination{}, newValidationError("page_size", "invalid_page_size", "page_size must be a number")
	}
	page.PageToken = strings.TrimSpace(page.PageToken)
	switch {
	case page.PageSize <= 0:
		page.PageSize = pagination.DefaultPageSize
	case page.PageSize > pagination.MaxPageSize:
		page.PageSize = pagination.MaxPageSize
	}
	if page.PageToken != "" {
		if _, err := pagination.DecodeCursor(page.PageToken); err != nil {
			return pagination.Pagination{}, newValidationError("page_token", "invalid_page_token", "page_token is invalid")
		}
	}
	return page, nil
}
