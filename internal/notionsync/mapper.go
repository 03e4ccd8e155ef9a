package notionsync

import (
	"strings"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/parse"
	"github.com/jomei/notionapi"
)

// Property names used in the target database. Every other canonical column
// is written as rich text under its own name.
const (
	PropName   = "Name"
	PropRowID  = "Row ID"
	PropTags   = domain.ColumnTags
	PropAmount = "Amount"
	PropDate   = "Date"

	titleColumn = "Description"
)

// RowToProperties converts a canonical row into page properties. Empty cells
// are omitted; Amount and Date fall back to rich text when they do not parse.
func RowToProperties(row domain.CanonicalRow, header domain.Header) notionapi.Properties {
	title := row.Get(titleColumn).String()
	if strings.TrimSpace(title) == "" {
		title = row.ID
	}

	props := notionapi.Properties{
		PropName:  notionapi.TitleProperty{Title: richText(title)},
		PropRowID: notionapi.RichTextProperty{RichText: richText(row.ID)},
	}

	for _, col := range header {
		v := row.Get(col)
		if v.IsEmpty() {
			continue
		}

		switch col {
		case PropTags:
			opts := make([]notionapi.Option, 0, len(row.Tags()))
			for _, t := range row.Tags() {
				opts = append(opts, notionapi.Option{Name: t.Name})
			}
			props[col] = notionapi.MultiSelectProperty{MultiSelect: opts}

		case PropAmount:
			if n, ok := v.Number(); ok {
				props[col] = notionapi.NumberProperty{Number: n}
			} else if n, ok := parse.ParseAmount(v.String()); ok {
				props[col] = notionapi.NumberProperty{Number: n}
			} else {
				props[col] = notionapi.RichTextProperty{RichText: richText(v.String())}
			}

		case PropDate:
			if t, ok := parse.ParseDateStrict(v.String()); ok {
				d := notionapi.Date(t)
				props[col] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
			} else {
				props[col] = notionapi.RichTextProperty{RichText: richText(v.String())}
			}

		default:
			props[col] = notionapi.RichTextProperty{RichText: richText(v.String())}
		}
	}
	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// extractRowID reads the Row ID property of a page, or "" if it has none.
func extractRowID(page notionapi.Page) string {
	prop, ok := page.Properties[PropRowID]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case notionapi.RichTextProperty:
		return plainText(p.RichText)
	}
	return ""
}

func plainText(rt []notionapi.RichText) string {
	if len(rt) == 0 {
		return ""
	}
	if rt[0].PlainText != "" {
		return rt[0].PlainText
	}
	if rt[0].Text != nil {
		return rt[0].Text.Content
	}
	return ""
}
