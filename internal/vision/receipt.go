// Package vision extracts transaction drafts from receipt photos with
// Gemini. The model output is a draft only; the caller decides whether to
// persist it.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/dvloznov/finhealth/internal/domain"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// Draft is a proposed transaction extracted from a receipt image.
type Draft struct {
	Title    string                 `json:"title"`
	Amount   decimal.Decimal        `json:"amount"`
	Category string                 `json:"category"`
	Type     domain.TransactionType `json:"type"`
	Date     civil.Date             `json:"date"`
}

// Extractor calls Gemini to read receipts.
type Extractor struct {
	client *genai.Client
	model  string
}

// NewExtractor creates an Extractor. The client picks up credentials from
// the environment (GEMINI_API_KEY or Vertex settings). An empty model falls
// back to DefaultModelName.
func NewExtractor(ctx context.Context, model string) (*Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewExtractor: create genai client: %w", err)
	}

	if model == "" {
		model = DefaultModelName
	}
	return &Extractor{client: client, model: model}, nil
}

// ExtractTransaction sends the receipt image to the model and decodes the
// returned draft. mimeType must be the image's MIME type, e.g. "image/jpeg".
func (e *Extractor) ExtractTransaction(ctx context.Context, image []byte, mimeType string) (*Draft, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("ExtractTransaction: empty image")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt()},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ExtractTransaction: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ExtractTransaction: empty response from model")
	}

	draft, err := decodeDraft(rawText)
	if err != nil {
		return nil, fmt.Errorf("ExtractTransaction: %w", err)
	}
	return draft, nil
}

func receiptPrompt() string {
	return "You are a receipt reader for a personal finance tracker.\n\n" +
		"Task:\n" +
		"- Read the attached receipt photo.\n" +
		"- Output STRICT JSON only (no comments, no extra text).\n" +
		"- Output a single JSON object.\n\n" +
		"The object must have these fields:\n" +
		"- \"title\": string (merchant name or a short description)\n" +
		"- \"amount\": number (the receipt total, always positive)\n" +
		"- \"category\": string, one of: " + strings.Join(domain.Categories, ", ") + "\n" +
		"- \"type\": string, \"income\" or \"expense\" (receipts are almost always \"expense\")\n" +
		"- \"date\": string, ISO format \"YYYY-MM-DD\" (the receipt date, or today's date if unreadable)\n\n" +
		"Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"{\" and end with \"}\".\n"
}

// rawDraft tolerates the model quoting the amount or emitting a bare number.
type rawDraft struct {
	Title    string          `json:"title"`
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Type     string          `json:"type"`
	Date     string          `json:"date"`
}

// decodeDraft parses the model output into a Draft, normalizing fields the
// model tends to get slightly wrong. A missing title or amount is an error;
// an unknown category or type is coerced to a safe value.
func decodeDraft(rawText string) (*Draft, error) {
	clean := cleanModelJSON(rawText)

	var raw rawDraft
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("decodeDraft: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	if strings.TrimSpace(raw.Title) == "" {
		return nil, fmt.Errorf("decodeDraft: missing title")
	}
	if len(raw.Amount) == 0 {
		return nil, fmt.Errorf("decodeDraft: missing amount")
	}

	amountText := strings.Trim(strings.TrimSpace(string(raw.Amount)), `"`)
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("decodeDraft: parsing amount %q: %w", amountText, err)
	}
	if amount.IsNegative() {
		amount = amount.Neg()
	}

	draft := &Draft{
		Title:    strings.TrimSpace(raw.Title),
		Amount:   amount,
		Category: raw.Category,
		Type:     domain.TransactionType(raw.Type),
	}

	if !domain.KnownCategory(draft.Category) {
		draft.Category = domain.FallbackCategory
	}
	if !draft.Type.Valid() {
		draft.Type = domain.TypeExpense
	}

	if raw.Date != "" {
		d, err := civil.ParseDate(raw.Date)
		if err != nil {
			return nil, fmt.Errorf("decodeDraft: parsing date %q: %w", raw.Date, err)
		}
		draft.Date = d
	}

	return draft, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk the model
// sometimes emits despite instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}' if there is still junk
	// around the object.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
