package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/logger"
	"github.com/jomei/notionapi"
)

const queryPageSize = 100

// Result counts what a sync did, or would do in dry-run mode.
type Result struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// SyncRows makes the Notion database mirror rows. Pages whose Row ID is gone,
// missing, or duplicated are archived; existing rows are updated in place and
// new rows are created. Per-page API failures are logged and counted, not
// returned.
func SyncRows(ctx context.Context, svc NotionService, dbID string, rows []domain.CanonicalRow, header domain.Header, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)
	var res Result

	log.Info().
		Int("rows", len(rows)).
		Bool("dry_run", dryRun).
		Msg("Starting Super Bank sync to Notion")

	pages, err := queryAllNotionPages(ctx, svc, dbID)
	if err != nil {
		return res, fmt.Errorf("SyncRows: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	wanted := make(map[string]bool, len(rows))
	for _, r := range rows {
		wanted[r.ID] = true
	}

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		rowID := extractRowID(page)
		pageID := string(page.ID)

		if _, dup := existing[rowID]; rowID != "" && wanted[rowID] && !dup {
			existing[rowID] = pageID
			continue
		}

		if dryRun {
			log.Info().Str("row_id", rowID).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := svc.DeletePage(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("row_id", rowID).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, row := range rows {
		pageID, found := existing[row.ID]
		if dryRun {
			if found {
				res.Updated++
			} else {
				res.Created++
			}
			continue
		}

		props := RowToProperties(row, header)
		if found {
			if _, err := svc.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("row_id", row.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := svc.CreatePage(ctx, dbID, props)
		if err != nil {
			log.Warn().Err(err).Str("row_id", row.ID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("row_id", row.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Super Bank sync completed")
	return res, nil
}

// queryAllNotionPages follows the query cursor until every page is read.
func queryAllNotionPages(ctx context.Context, svc NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}
