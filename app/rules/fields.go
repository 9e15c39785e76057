package rules

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lysyi3m/listing-comb/app/model"
)

type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldList
)

func (k FieldKind) String() string {
	switch k {
	case FieldText:
		return "text"
	case FieldNumber:
		return "number"
	case FieldList:
		return "list"
	default:
		return "unknown"
	}
}

// Field is a typed accessor for one record attribute. Only one of the getter/setter
// pairs is set, matching Kind.
type Field struct {
	Name string
	Kind FieldKind

	getText func(*model.CollectedRecord) string
	setText func(*model.CollectedRecord, string)
	getNum  func(*model.CollectedRecord) float64
	setNum  func(*model.CollectedRecord, float64)
	getList func(*model.CollectedRecord) []string
	setList func(*model.CollectedRecord, []string)
}

var fields = map[string]Field{
	"title": {Name: "title", Kind: FieldText,
		getText: func(r *model.CollectedRecord) string { return r.Title },
		setText: func(r *model.CollectedRecord, v string) { r.Title = v }},
	"description": {Name: "description", Kind: FieldText,
		getText: func(r *model.CollectedRecord) string { return r.Description },
		setText: func(r *model.CollectedRecord, v string) { r.Description = v }},
	"category": {Name: "category", Kind: FieldText,
		getText: func(r *model.CollectedRecord) string { return r.Category },
		setText: func(r *model.CollectedRecord, v string) { r.Category = v }},
	"currency": {Name: "currency", Kind: FieldText,
		getText: func(r *model.CollectedRecord) string { return r.Currency },
		setText: func(r *model.CollectedRecord, v string) { r.Currency = v }},
	"url": {Name: "url", Kind: FieldText,
		getText: func(r *model.CollectedRecord) string { return r.URL },
		setText: func(r *model.CollectedRecord, v string) { r.URL = v }},
	"sourceId": {Name: "sourceId", Kind: FieldText,
		getText: func(r *model.CollectedRecord) string { return r.SourceID },
		setText: func(r *model.CollectedRecord, v string) { r.SourceID = v }},
	"externalId": {Name: "externalId", Kind: FieldText,
		getText: func(r *model.CollectedRecord) string { return r.ExternalID },
		setText: func(r *model.CollectedRecord, v string) { r.ExternalID = v }},
	"price": {Name: "price", Kind: FieldNumber,
		getNum: func(r *model.CollectedRecord) float64 { return r.Price },
		setNum: func(r *model.CollectedRecord, v float64) { r.Price = v }},
	"originalPrice": {Name: "originalPrice", Kind: FieldNumber,
		getNum: func(r *model.CollectedRecord) float64 { return r.OriginalPrice },
		setNum: func(r *model.CollectedRecord, v float64) { r.OriginalPrice = v }},
	"stock": {Name: "stock", Kind: FieldNumber,
		getNum: func(r *model.CollectedRecord) float64 { return float64(r.Stock) },
		setNum: func(r *model.CollectedRecord, v float64) { r.Stock = int(math.Round(v)) }},
	"tags": {Name: "tags", Kind: FieldList,
		getList: func(r *model.CollectedRecord) []string { return r.Tags },
		setList: func(r *model.CollectedRecord, v []string) { r.Tags = v }},
	"images": {Name: "images", Kind: FieldList,
		getList: func(r *model.CollectedRecord) []string { return r.Images },
		setList: func(r *model.CollectedRecord, v []string) { r.Images = v }},
}

// LookupField resolves a field name against the closed record schema.
func LookupField(name string) (Field, error) {
	f, ok := fields[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: unknown field '%s'", model.ErrValidation, name)
	}
	return f, nil
}

func FieldNames() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns the field's value in string form; lists are comma-joined.
func (f Field) String(r *model.CollectedRecord) string {
	switch f.Kind {
	case FieldNumber:
		return formatNumber(f.getNum(r))
	case FieldList:
		return strings.Join(f.getList(r), ", ")
	default:
		return f.getText(r)
	}
}

// Number returns the field's numeric value; text fields are parsed and lists are
// never numeric.
func (f Field) Number(r *model.CollectedRecord) (float64, bool) {
	switch f.Kind {
	case FieldNumber:
		return f.getNum(r), true
	case FieldText:
		return parseNumber(f.getText(r))
	default:
		return 0, false
	}
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
