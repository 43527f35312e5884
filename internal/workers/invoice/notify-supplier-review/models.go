package notifysupplierreview

import (
	"context"

	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/matching"
)

const (
	ReasonUnmatched     = "unmatched"
	ReasonLowConfidence = "low_confidence"
	ReasonNoVendor      = "no_vendor"

	ChannelSNS = "sns"
	ChannelSES = "ses"
)

type Input struct {
	FileName        string                   `json:"fileName"`
	EnhancedKey     string                   `json:"enhancedKey,omitempty"`
	VendorName      string                   `json:"vendorName"`
	MatchedSupplier *matching.SupplierMatch  `json:"matchedSupplier"`
	TopMatches      []matching.SupplierMatch `json:"topMatches"`
	Recipients      []string                 `json:"recipients,omitempty"`
}

type Output struct {
	Notified     bool     `json:"notified"`
	Reason       string   `json:"reason,omitempty"`
	Channels     []string `json:"channels"`
	SNSMessageID string   `json:"snsMessageId,omitempty"`
	SESMessageID string   `json:"sesMessageId,omitempty"`
}

// ReviewMessage is the JSON body published to the review topic.
type ReviewMessage struct {
	Reason          string                   `json:"reason"`
	FileName        string                   `json:"file_name"`
	EnhancedKey     string                   `json:"enhanced_key,omitempty"`
	VendorName      string                   `json:"vendor_name"`
	MatchedSupplier *matching.SupplierMatch  `json:"matched_supplier"`
	Candidates      []matching.SupplierMatch `json:"candidates"`
}

// Publisher is satisfied by *aws.SNSClient.
type Publisher interface {
	PublishMessage(ctx context.Context, topicARN, subject, message string, attributes map[string]string) (string, error)
}

// Mailer is satisfied by *aws.SESClient.
type Mailer interface {
	SendTextEmail(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"fileName": {
				Type:        "string",
				Description: "Uploaded document the match belongs to",
			},
			"enhancedKey": {
				Type:        "string",
				Description: "Key of the enriched result",
			},
			"vendorName": {
				Type:        "string",
				Description: "Vendor name extracted from the document",
			},
			"matchedSupplier": {
				Description: "Accepted supplier match, null when none",
			},
			"topMatches": {
				Type:        "array",
				Description: "Ranked supplier candidates",
				Items:       &validation.Property{Type: "object"},
			},
			"recipients": {
				Type:        "array",
				Description: "Reviewer addresses, overriding the configured list",
				Items:       &validation.Property{Type: "string", Format: "email"},
			},
		},
		AdditionalProperties: true,
	}
}
