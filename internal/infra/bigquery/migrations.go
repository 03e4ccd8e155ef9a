package bigquery

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/superbank/internal/logger"
	"google.golang.org/api/iterator"
)

// Migration is one versioned DDL statement. {{DATASET_ID}} is replaced with the
// target dataset when the migration runs.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Checksum hashes the unrendered SQL so the same migration has the same
// checksum in every dataset.
func (m Migration) Checksum() string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(m.SQL)))
}

// Render substitutes the dataset placeholder.
func (m Migration) Render(dataset string) string {
	return strings.ReplaceAll(m.SQL, "{{DATASET_ID}}", dataset)
}

// Migrations lists the schema in version order.
var Migrations = []Migration{
	{1, "create_bank_mappings", `
		CREATE TABLE IF NOT EXISTS ` + "`{{DATASET_ID}}.bank_mappings`" + ` (
			name        STRING NOT NULL,
			bank_id     STRING,
			payload     STRING NOT NULL,
			updated_ts  TIMESTAMP
		)`},
	{2, "create_tags", `
		CREATE TABLE IF NOT EXISTS ` + "`{{DATASET_ID}}.tags`" + ` (
			tag_id  STRING NOT NULL,
			name    STRING NOT NULL,
			color   STRING
		)`},
	{3, "create_statements", `
		CREATE TABLE IF NOT EXISTS ` + "`{{DATASET_ID}}.statements`" + ` (
			statement_id   STRING NOT NULL,
			bank_name      STRING NOT NULL,
			account_id     STRING,
			object_uri     STRING NOT NULL,
			filename       STRING,
			status         STRING NOT NULL,
			error_message  STRING,
			row_count      INT64 NOT NULL,
			upload_date    DATE NOT NULL,
			upload_ts      TIMESTAMP NOT NULL,
			updated_ts     TIMESTAMP
		)
		PARTITION BY upload_date`},
	{4, "create_raw_transactions", `
		CREATE TABLE IF NOT EXISTS ` + "`{{DATASET_ID}}.raw_transactions`" + ` (
			transaction_id  STRING NOT NULL,
			bank_id         STRING,
			account_id      STRING,
			statement_id    STRING,
			line_no         INT64 NOT NULL,
			payload         STRING NOT NULL,
			created_ts      TIMESTAMP NOT NULL
		)
		CLUSTER BY bank_id, statement_id`},
}

// Migrate applies every migration not yet recorded in schema_migrations and
// returns how many ran.
func Migrate(ctx context.Context, client *bigquery.Client, dataset, appliedBy string) (int, error) {
	log := logger.FromContext(ctx)

	if err := ensureSchemaMigrationsTable(ctx, client, dataset); err != nil {
		return 0, fmt.Errorf("Migrate: ensuring schema_migrations: %w", err)
	}
	applied, err := appliedVersions(ctx, client, dataset)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	count := 0
	for _, m := range Pending(Migrations, applied) {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		if err := runDML(ctx, client.Query(m.Render(dataset))); err != nil {
			return count, fmt.Errorf("Migrate: %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := recordMigration(ctx, client, dataset, m, appliedBy); err != nil {
			return count, fmt.Errorf("Migrate: recording %04d_%s: %w", m.Version, m.Name, err)
		}
		count++
	}
	return count, nil
}

// Pending returns migrations whose version is not in applied, sorted by version.
func Pending(all []Migration, applied map[int]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client, dataset string) error {
	q := client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version     INT64 NOT NULL,
			name        STRING NOT NULL,
			applied_at  TIMESTAMP NOT NULL,
			checksum    STRING,
			applied_by  STRING
		)
	`, qualify(dataset, "schema_migrations")))
	return runDML(ctx, q)
}

func appliedVersions(ctx context.Context, client *bigquery.Client, dataset string) (map[int]bool, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT version FROM %s ORDER BY version
	`, qualify(dataset, "schema_migrations")))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	versions := make(map[int]bool)
	for {
		var row struct {
			Version int64 `bigquery:"version"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		versions[int(row.Version)] = true
	}
	return versions, nil
}

func recordMigration(ctx context.Context, client *bigquery.Client, dataset string, m Migration, appliedBy string) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, qualify(dataset, "schema_migrations")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum()},
		{Name: "applied_by", Value: appliedBy},
	}
	return runDML(ctx, q)
}
