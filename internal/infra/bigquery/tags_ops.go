package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/superbank/internal/domain"
	"google.golang.org/api/iterator"
)

// TagRow is one entry of the tag catalog.
type TagRow struct {
	TagID string              `bigquery:"tag_id"` // REQUIRED
	Name  string              `bigquery:"name"`   // REQUIRED
	Color bigquery.NullString `bigquery:"color"`  // NULLABLE
}

func (r TagRow) toDomain() domain.Tag {
	t := domain.Tag{ID: r.TagID, Name: r.Name}
	if r.Color.Valid {
		t.Color = r.Color.StringVal
	}
	return t
}

// ListTags returns the tag catalog ordered by name.
func (r *Repository) ListTags(ctx context.Context) ([]domain.Tag, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT tag_id, name, color
		FROM %s
		ORDER BY name, tag_id
	`, r.table(tagsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTags: query read: %w", err)
	}

	var tags []domain.Tag
	for {
		var row TagRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTags: iter next: %w", err)
		}
		tags = append(tags, row.toDomain())
	}
	return tags, nil
}

// SaveTag inserts or updates a tag by ID.
func (r *Repository) SaveTag(ctx context.Context, tag domain.Tag) error {
	if strings.TrimSpace(tag.ID) == "" || strings.TrimSpace(tag.Name) == "" {
		return fmt.Errorf("SaveTag: id and name are required")
	}

	q := r.client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @tag_id AS tag_id, @name AS name, @color AS color) S
		ON T.tag_id = S.tag_id
		WHEN MATCHED THEN
		  UPDATE SET name = S.name, color = S.color
		WHEN NOT MATCHED THEN
		  INSERT (tag_id, name, color) VALUES (S.tag_id, S.name, S.color)
	`, r.table(tagsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tag_id", Value: tag.ID},
		{Name: "name", Value: tag.Name},
		{Name: "color", Value: nullString(tag.Color)},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("SaveTag: %w", err)
	}
	return nil
}
