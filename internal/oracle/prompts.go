package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"formika/internal/reconcile"
	"formika/internal/schema"

	"github.com/cockroachdb/errors"
)

// MatchColumns сопоставляет непознанные подписи колонок с полями схемы.
// Порог confidence >= 0.7 держит сам оракул — это часть его контракта;
// матчи на неизвестные цели тоже выбрасываем здесь.
func (c *Client) MatchColumns(ctx context.Context, labels []string, targets []reconcile.Target) ([]reconcile.Match, error) {
	tgt, _ := json.Marshal(targets)
	lbl, _ := json.Marshal(labels)
	user := fmt.Sprintf(
		"Source column labels: %s\nTarget fields: %s\n"+
			"Match each source label to the most likely target field name. "+
			"Only include matches you are confident about (confidence 0.7 or higher). "+
			"Respond with a JSON array of {\"sourceLabel\", \"targetFieldName\", \"confidence\"}.",
		lbl, tgt)

	text, err := c.complete(ctx, "You map spreadsheet column labels to schema field names. Respond with JSON only.", user)
	if err != nil {
		return nil, err
	}

	var raw []reconcile.Match
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil {
		return nil, errors.Wrap(err, "oracle match payload parse failed")
	}

	known := make(map[string]bool, len(targets))
	for _, t := range targets {
		known[t.Name] = true
	}
	out := make([]reconcile.Match, 0, len(raw))
	for _, m := range raw {
		if m.Confidence < reconcile.MinConfidence || !known[m.TargetField] {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// GenerateSchema синтезирует черновик схемы по описанию экрана на естественном
// языке. Черновик дальше чинит schema.Lint — здесь только парсим.
func (c *Client) GenerateSchema(ctx context.Context, prompt string) (schema.Draft, error) {
	user := fmt.Sprintf(
		"Screen description: %s\n"+
			"Design the data-entry screen schema. Allowed field types: string, number, email, phone, date, select, textarea. "+
			"Field names must be latin snake_case, labels in the user's language. "+
			"select fields must carry an options list. "+
			"Respond with JSON: {\"name\", \"description\", \"fields\": [{\"name\", \"type\", \"label\", \"required\", \"options\"}]}.",
		prompt)

	text, err := c.complete(ctx, "You design data-entry screen schemas. Respond with JSON only.", user)
	if err != nil {
		return schema.Draft{}, err
	}
	var d schema.Draft
	if err := json.Unmarshal([]byte(extractJSON(text)), &d); err != nil {
		return schema.Draft{}, errors.Wrap(err, "oracle schema payload parse failed")
	}
	if strings.TrimSpace(d.Name) == "" {
		d.Name = prompt
	}
	return d, nil
}

// Extraction — результат выдёргивания данных из свободного текста.
type Extraction struct {
	Data       map[string]any `json:"data"`
	Confidence float64        `json:"confidence"`
	Missing    []string       `json:"missing"`
}

// ExtractData вытаскивает из свободного текста значения полей схемы.
func (c *Client) ExtractData(ctx context.Context, text string, fields []schema.Field) (Extraction, error) {
	type fieldHint struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Label string `json:"label"`
	}
	hints := make([]fieldHint, 0, len(fields))
	for _, f := range fields {
		if f.Generated {
			continue
		}
		hints = append(hints, fieldHint{Name: f.Name, Type: f.Type, Label: f.Label})
	}
	fj, _ := json.Marshal(hints)
	user := fmt.Sprintf(
		"Text: %s\nFields: %s\n"+
			"Extract field values from the text. Unknown fields go to \"missing\". "+
			"Respond with JSON: {\"data\": {...}, \"confidence\": 0..1, \"missing\": [...]}.",
		text, fj)

	reply, err := c.complete(ctx, "You extract structured records from free text. Respond with JSON only.", user)
	if err != nil {
		return Extraction{}, err
	}
	var ex Extraction
	if err := json.Unmarshal([]byte(extractJSON(reply)), &ex); err != nil {
		return Extraction{}, errors.Wrap(err, "oracle extraction payload parse failed")
	}
	return ex, nil
}
