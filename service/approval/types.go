package approval

import (
	"fmt"
	"strings"

	"github.com/viant/fluxgate/model/types"
)

// Category enumerates the kinds of gated actions.
type Category string

const (
	CategoryEmail         Category = "EMAIL"
	CategorySocialPost    Category = "SOCIAL_POST"
	CategoryPayment       Category = "PAYMENT"
	CategoryFileOperation Category = "FILE_OPERATION"
	CategoryCustom        Category = "CUSTOM"
)

// Categories lists every supported category.
var Categories = []Category{CategoryEmail, CategorySocialPost, CategoryPayment, CategoryFileOperation, CategoryCustom}

// ParseCategory converts a case-insensitive name into a Category.
func ParseCategory(name string) (Category, error) {
	candidate := Category(strings.ToUpper(strings.TrimSpace(name)))
	if err := candidate.Validate(); err != nil {
		return "", err
	}
	return candidate, nil
}

// Validate returns a ValidationError for unknown categories.
func (c Category) Validate() error {
	for _, candidate := range Categories {
		if c == candidate {
			return nil
		}
	}
	return types.NewValidationError("category", "unsupported category %q", string(c))
}

// Status represents the approval request lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
	StatusExecuted Status = "EXECUTED"
)

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusExpired || s == StatusExecuted
}

// Event is published by the ledger on every lifecycle transition.
type Event struct {
	Topic   string            `json:"topic"`
	Request *Request          `json:"request"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Lifecycle event topics.
const (
	TopicRequestCreated  = "request.created"
	TopicRequestApproved = "request.approved"
	TopicRequestRejected = "request.rejected"
	TopicRequestExpired  = "request.expired"
	TopicRequestExecuted = "request.executed"
	TopicRequestFailed   = "request.failed"
)

// QueueResult reports the outcome of one ProcessQueue pass.
type QueueResult struct {
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Expired  int `json:"expired"`
}

func (r QueueResult) String() string {
	return fmt.Sprintf("executed=%d failed=%d expired=%d", r.Executed, r.Failed, r.Expired)
}
