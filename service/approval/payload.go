package approval

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/viant/fluxgate/model/types"
)

// Payload is the category specific body of a request. Each category has one
// concrete payload type, and executors type-switch on it.
type Payload interface {
	Category() Category
	Validate() error
}

type (
	// EmailPayload describes an outgoing email.
	EmailPayload struct {
		To        []string `json:"to"`
		Cc        []string `json:"cc,omitempty"`
		Subject   string   `json:"subject"`
		Body      string   `json:"body"`
		InReplyTo string   `json:"inReplyTo,omitempty"`
	}

	// SocialPostPayload describes a post on a social network.
	SocialPostPayload struct {
		Platform    string     `json:"platform"`
		Content     string     `json:"content"`
		MediaURLs   []string   `json:"mediaUrls,omitempty"`
		ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	}

	// PaymentPayload describes a payment to record or send.
	PaymentPayload struct {
		Payee     string  `json:"payee"`
		Amount    float64 `json:"amount"`
		Currency  string  `json:"currency"`
		Reference string  `json:"reference,omitempty"`
	}

	// FileOperationPayload describes a file move, copy, write or delete.
	FileOperationPayload struct {
		Operation   string `json:"operation"`
		Source      string `json:"source,omitempty"`
		Destination string `json:"destination,omitempty"`
		Content     string `json:"content,omitempty"`
	}

	// CustomPayload carries free-form data for user defined actions.
	CustomPayload struct {
		Kind string                 `json:"kind"`
		Data map[string]interface{} `json:"data,omitempty"`
	}
)

func (*EmailPayload) Category() Category         { return CategoryEmail }
func (*SocialPostPayload) Category() Category    { return CategorySocialPost }
func (*PaymentPayload) Category() Category       { return CategoryPayment }
func (*FileOperationPayload) Category() Category { return CategoryFileOperation }
func (*CustomPayload) Category() Category        { return CategoryCustom }

func (p *EmailPayload) Validate() error {
	if len(p.To) == 0 {
		return types.NewValidationError("payload.to", "at least one recipient is required")
	}
	for _, to := range p.To {
		if !strings.Contains(to, "@") {
			return types.NewValidationError("payload.to", "invalid recipient %q", to)
		}
	}
	return nil
}

func (p *SocialPostPayload) Validate() error {
	if p.Platform == "" {
		return types.NewValidationError("payload.platform", "platform is required")
	}
	if strings.TrimSpace(p.Content) == "" && len(p.MediaURLs) == 0 {
		return types.NewValidationError("payload.content", "content or media is required")
	}
	return nil
}

func (p *PaymentPayload) Validate() error {
	if p.Payee == "" {
		return types.NewValidationError("payload.payee", "payee is required")
	}
	if !(p.Amount > 0) || math.IsInf(p.Amount, 1) {
		return types.NewValidationError("payload.amount", "amount must be a finite number > 0")
	}
	if len(p.Currency) != 3 {
		return types.NewValidationError("payload.currency", "invalid currency %q", p.Currency)
	}
	return nil
}

func (p *FileOperationPayload) Validate() error {
	switch strings.ToLower(p.Operation) {
	case "move", "copy":
		if p.Source == "" || p.Destination == "" {
			return types.NewValidationError("payload", "%s requires source and destination", p.Operation)
		}
	case "delete":
		if p.Source == "" {
			return types.NewValidationError("payload.source", "delete requires source")
		}
	case "write":
		if p.Destination == "" {
			return types.NewValidationError("payload.destination", "write requires destination")
		}
	default:
		return types.NewValidationError("payload.operation", "unsupported operation %q", p.Operation)
	}
	return nil
}

func (p *CustomPayload) Validate() error {
	if p.Kind == "" {
		return types.NewValidationError("payload.kind", "kind is required")
	}
	return nil
}

// NewPayload returns an empty payload of the category's concrete type.
func NewPayload(category Category) (Payload, error) {
	switch category {
	case CategoryEmail:
		return &EmailPayload{}, nil
	case CategorySocialPost:
		return &SocialPostPayload{}, nil
	case CategoryPayment:
		return &PaymentPayload{}, nil
	case CategoryFileOperation:
		return &FileOperationPayload{}, nil
	case CategoryCustom:
		return &CustomPayload{}, nil
	}
	return nil, category.Validate()
}

// DecodePayload decodes JSON data into the category's payload type.
func DecodePayload(category Category, data []byte) (Payload, error) {
	payload, err := NewPayload(category)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", category, err)
	}
	return payload, nil
}

// PayloadFromMap converts loosely typed input (for example a step action
// read from YAML) into the category's payload type.
func PayloadFromMap(category Category, input map[string]interface{}) (Payload, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", category, err)
	}
	return DecodePayload(category, data)
}
