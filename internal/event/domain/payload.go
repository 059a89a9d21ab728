package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const DefaultCurrency = "USD"

var ErrMalformedJSON = errors.New("malformed_json")

// Payload is the body of one event type. Only this package implements it.
type Payload interface {
	Type() Type
	ExternalUserID() string
	isPayload()
}

type SignupPayload struct {
	UserID       string `json:"userId"`
	ReferralCode string `json:"referralCode,omitempty"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
}

func (SignupPayload) Type() Type               { return TypeSignup }
func (p SignupPayload) ExternalUserID() string { return p.UserID }
func (SignupPayload) isPayload()               {}

type PurchasePayload struct {
	UserID      string   `json:"userId"`
	OrderAmount float64  `json:"orderAmount"`
	OrderID     string   `json:"orderId"`
	ProductIDs  []string `json:"productIds,omitempty"`
	Currency    string   `json:"currency"`
}

func (PurchasePayload) Type() Type               { return TypePurchase }
func (p PurchasePayload) ExternalUserID() string { return p.UserID }
func (PurchasePayload) isPayload()               {}

// Command is a validated ingestion request.
type Command struct {
	EventType Type
	Timestamp time.Time
	ProductID snowflake.ID
	ProgramID snowflake.ID
	Payload   Payload
	// RawPayload is kept verbatim for the Event metadata.
	RawPayload json.RawMessage
}

type envelope struct {
	EventType *string         `json:"eventType"`
	Timestamp *string         `json:"timestamp"`
	ProductID *string         `json:"productId"`
	ProgramID *string         `json:"programId"`
	Payload   json.RawMessage `json:"payload"`
}

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []FieldError
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		parts = append(parts, e.Field+": "+e.Code)
	}
	return "validation error: " + strings.Join(parts, ", ")
}

func (v *ValidationErrors) add(field, code, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Code: code, Message: message})
}

func (v *ValidationErrors) empty() bool {
	return len(v.Errors) == 0
}

func NewValidationError(field, code, message string) *ValidationErrors {
	v := &ValidationErrors{}
	v.add(field, code, message)
	return v
}

// ParseCommand decodes the tagged union. It returns ErrMalformedJSON for
// undecodable bodies and *ValidationErrors listing every invalid field.
func ParseCommand(body []byte) (*Command, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	verr := &ValidationErrors{}
	cmd := &Command{}

	eventType := Type(strings.TrimSpace(deref(env.EventType)))
	switch eventType {
	case TypeSignup, TypePurchase:
		cmd.EventType = eventType
	case "":
		verr.add("eventType", "required", "eventType is required")
	default:
		verr.add("eventType", "invalid_event_type", "eventType must be one of signup, purchase")
	}

	timestamp := strings.TrimSpace(deref(env.Timestamp))
	if timestamp == "" {
		verr.add("timestamp", "required", "timestamp is required")
	} else if ts, err := time.Parse(time.RFC3339Nano, timestamp); err != nil {
		verr.add("timestamp", "invalid_timestamp", "timestamp must be ISO8601")
	} else {
		cmd.Timestamp = ts.UTC()
	}

	productID := strings.TrimSpace(deref(env.ProductID))
	if productID == "" {
		verr.add("productId", "required", "productId is required")
	} else if id, err := snowflake.ParseString(productID); err != nil || id <= 0 {
		verr.add("productId", "invalid_product_id", "productId is invalid")
	} else {
		cmd.ProductID = id
	}

	if programID := strings.TrimSpace(deref(env.ProgramID)); programID != "" {
		if id, err := snowflake.ParseString(programID); err != nil || id <= 0 {
			verr.add("programId", "invalid_program_id", "programId is invalid")
		} else {
			cmd.ProgramID = id
		}
	}

	raw := bytes.TrimSpace(env.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		verr.add("payload", "required", "payload is required")
	} else if cmd.EventType != "" {
		cmd.RawPayload = append(json.RawMessage(nil), raw...)
		switch cmd.EventType {
		case TypeSignup:
			cmd.Payload = parseSignup(raw, verr)
		case TypePurchase:
			cmd.Payload = parsePurchase(raw, verr)
		}
	}

	if !verr.empty() {
		return nil, verr
	}
	return cmd, nil
}

func parseSignup(raw []byte, verr *ValidationErrors) Payload {
	var p SignupPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		verr.add("payload", "invalid_payload", "payload does not match the signup schema")
		return nil
	}
	p.UserID = strings.TrimSpace(p.UserID)
	p.ReferralCode = strings.TrimSpace(p.ReferralCode)
	p.Email = strings.TrimSpace(p.Email)
	p.Name = strings.TrimSpace(p.Name)
	if p.UserID == "" {
		verr.add("payload.userId", "required", "userId is required")
	}
	return p
}

func parsePurchase(raw []byte, verr *ValidationErrors) Payload {
	var p PurchasePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		verr.add("payload", "invalid_payload", "payload does not match the purchase schema")
		return nil
	}
	p.UserID = strings.TrimSpace(p.UserID)
	p.OrderID = strings.TrimSpace(p.OrderID)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if p.UserID == "" {
		verr.add("payload.userId", "required", "userId is required")
	}
	if p.OrderID == "" {
		verr.add("payload.orderId", "required", "orderId is required")
	}
	if p.OrderAmount <= 0 {
		verr.add("payload.orderAmount", "invalid_order_amount", "orderAmount must be greater than 0")
	}
	if !isCurrencyCode(p.Currency) {
		verr.add("payload.currency", "invalid_currency", "currency must be a 3 letter code")
	}
	return p
}

func isCurrencyCode(value string) bool {
	if len(value) != 3 {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 'A' || value[i] > 'Z' {
			return false
		}
	}
	return true
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
