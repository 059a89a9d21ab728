package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/pkg/db/pagination"
)

type Service interface {
	// Ingest runs the attribution pipeline for a command authenticated as
	// productID. EventID is empty when the Event row could not be written.
	Ingest(ctx context.Context, productID snowflake.ID, cmd *Command) (*IngestResult, error)
	Get(ctx context.Context, productID, id snowflake.ID) (*Event, error)
	// ListByParticipant pages the events attributed to a participant, newest first.
	ListByParticipant(ctx context.Context, productID, participantID snowflake.ID, page pagination.Pagination) ([]*Event, pagination.PageInfo, error)
}

type IngestResult struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
}

var (
	ErrProductMismatch = errors.New("product_mismatch")
	ErrNotFound        = errors.New("event_not_found")
)
