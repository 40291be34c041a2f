package budget

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

// Encode renders the budget as indented JSON.
func Encode(b *Budget) ([]byte, error) {
	data, err := sonic.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode budget: %w", err)
	}
	return data, nil
}

// Wire shapes used only for decoding, so absent fields can take the model
// defaults instead of Go zero values.
type (
	itemJSON struct {
		Code        string              `json:"code"`
		Unit        string              `json:"unit"`
		Description string              `json:"description"`
		Price       decimal.NullDecimal `json:"price"`
		Quantity    decimal.NullDecimal `json:"quantity"`
	}

	chapterJSON struct {
		Code        string         `json:"code"`
		Title       string         `json:"title"`
		Items       []itemJSON     `json:"items"`
		Subchapters []*chapterJSON `json:"subchapters"`
	}

	metadataJSON struct {
		Title    string     `json:"title"`
		Owner    string     `json:"owner"`
		Date     *time.Time `json:"date"`
		Version  string     `json:"version"`
		Currency string     `json:"currency"`
		Comments string     `json:"comments"`
	}

	budgetJSON struct {
		Metadata metadataJSON   `json:"metadata"`
		Chapters []*chapterJSON `json:"chapters"`
	}
)

// Decode reads a budget from JSON. Missing metadata fields, units and
// quantities take the model defaults; a missing date becomes now.
func Decode(data []byte, now time.Time) (*Budget, error) {
	var raw budgetJSON
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode budget: %w", err)
	}

	b := New(now)
	if raw.Metadata.Title != "" {
		b.Metadata.Title = raw.Metadata.Title
	}
	if raw.Metadata.Date != nil {
		b.Metadata.Date = *raw.Metadata.Date
	}
	if raw.Metadata.Version != "" {
		b.Metadata.Version = raw.Metadata.Version
	}
	if raw.Metadata.Currency != "" {
		b.Metadata.Currency = raw.Metadata.Currency
	}
	b.Metadata.Owner = raw.Metadata.Owner
	b.Metadata.Comments = raw.Metadata.Comments

	for _, c := range raw.Chapters {
		if c == nil {
			continue
		}
		b.AddChapter(c.toChapter())
	}
	return b, nil
}

func (c *chapterJSON) toChapter() *Chapter {
	chapter := NewChapter(c.Code, c.Title)
	for _, raw := range c.Items {
		item := NewItem(raw.Code, raw.Description, decimal.Zero)
		if raw.Unit != "" {
			item.Unit = raw.Unit
		}
		if raw.Price.Valid {
			item.Price = raw.Price.Decimal
		}
		if raw.Quantity.Valid {
			item.Quantity = raw.Quantity.Decimal
		}
		chapter.AddItem(item)
	}
	for _, sub := range c.Subchapters {
		if sub == nil {
			continue
		}
		chapter.AddSubchapter(sub.toChapter())
	}
	return chapter
}
