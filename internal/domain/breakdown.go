package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CategorySpend is the aggregate spend of one category over a statement period.
// Amount and Count are pointers because the oracle may omit them; a missing
// value is treated as zero.
type CategorySpend struct {
	Name       string
	Amount     *float64
	Percentage *float64
	Count      *float64
	Brands     []string
}

// AmountOrZero returns the amount, or 0 when it is missing.
func (c CategorySpend) AmountOrZero() float64 {
	if c.Amount == nil {
		return 0
	}
	return *c.Amount
}

// CountOrZero returns the count, or 0 when it is missing.
func (c CategorySpend) CountOrZero() float64 {
	if c.Count == nil {
		return 0
	}
	return *c.Count
}

// CategoryBreakdown is an ordered category -> spend mapping. It encodes as a
// JSON object and keeps the key order it was decoded with.
type CategoryBreakdown []CategorySpend

type categorySpendJSON struct {
	Amount     *float64 `json:"amount,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Count      *float64 `json:"count,omitempty"`
	Brands     []string `json:"brands,omitempty"`
}

// Get looks up a category by name.
func (b CategoryBreakdown) Get(name string) (CategorySpend, bool) {
	for _, c := range b {
		if c.Name == name {
			return c, true
		}
	}
	return CategorySpend{}, false
}

// Clone returns a deep copy.
func (b CategoryBreakdown) Clone() CategoryBreakdown {
	if b == nil {
		return nil
	}
	out := make(CategoryBreakdown, len(b))
	for i, c := range b {
		out[i] = CategorySpend{
			Name:       c.Name,
			Amount:     cloneFloat(c.Amount),
			Percentage: cloneFloat(c.Percentage),
			Count:      cloneFloat(c.Count),
		}
		if c.Brands != nil {
			out[i].Brands = append([]string(nil), c.Brands...)
		}
	}
	return out
}

// MarshalJSON encodes the breakdown as an object in slice order.
func (b CategoryBreakdown) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, fmt.Errorf("CategoryBreakdown: encoding key: %w", err)
		}
		val, err := json.Marshal(categorySpendJSON{
			Amount:     c.Amount,
			Percentage: c.Percentage,
			Count:      c.Count,
			Brands:     c.Brands,
		})
		if err != nil {
			return nil, fmt.Errorf("CategoryBreakdown: encoding %q: %w", c.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object into the breakdown, preserving key order.
// Each value must be an object; numeric fields accept numbers or numeric strings.
func (b *CategoryBreakdown) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("category breakdown: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("category breakdown: expected object, got %v", tok)
	}

	out := CategoryBreakdown{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("category breakdown: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("category breakdown: unexpected key %v", tok)
		}

		var raw struct {
			Amount     json.RawMessage `json:"amount"`
			Percentage json.RawMessage `json:"percentage"`
			Count      json.RawMessage `json:"count"`
			Brands     []string        `json:"brands"`
		}
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("category breakdown: entry %q: %w", name, err)
		}

		entry := CategorySpend{Name: name, Brands: raw.Brands}
		if entry.Amount, err = ParseLooseNumber(raw.Amount); err != nil {
			return fmt.Errorf("category breakdown: %q amount: %w", name, err)
		}
		if entry.Percentage, err = ParseLooseNumber(raw.Percentage); err != nil {
			return fmt.Errorf("category breakdown: %q percentage: %w", name, err)
		}
		if entry.Count, err = ParseLooseNumber(raw.Count); err != nil {
			return fmt.Errorf("category breakdown: %q count: %w", name, err)
		}

		replaced := false
		for i := range out {
			if out[i].Name == name {
				out[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, entry)
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("category breakdown: %w", err)
	}

	*b = out
	return nil
}

var numberReplacer = strings.NewReplacer(",", "", "₹", "", "INR", "", "Rs.", "", "Rs", "", "%", "", " ", "")

// ParseLooseNumber decodes a JSON number or a numeric string such as "₹1,250.50".
// An absent value, null or an empty string yields nil.
func ParseLooseNumber(raw json.RawMessage) (*float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, err
		}
		str = numberReplacer.Replace(strings.TrimSpace(str))
		if str == "" {
			return nil, nil
		}
		s = str
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %s", string(raw))
	}
	return &v, nil
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
