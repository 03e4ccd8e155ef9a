// Package analytics computes Super Bank summaries over canonical rows.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/parse"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Options controls how amounts, directions and months are resolved.
type Options struct {
	AmountColumn string
	TypeColumn   string
	DateColumn   string

	// TypeFromSign classifies rows with no rule or CR/DR column by the sign
	// of their amount.
	TypeFromSign bool
}

// DefaultOptions reads Amount, Type and Date and falls back to the amount's
// sign for direction.
func DefaultOptions() Options {
	return Options{
		AmountColumn: "Amount",
		TypeColumn:   "Type",
		DateColumn:   "Date",
		TypeFromSign: true,
	}
}

// Summary is the analytics view over a filtered set of rows.
//
// TotalAmount sums every row's resolved amount, including rows whose
// direction could not be determined. Those rows are left out of TotalCredit
// and TotalDebit, so TotalCredit - TotalDebit need not equal TotalAmount.
//
// With DefaultOptions a row lacking a CR/DR marker takes its direction from
// the sign of its amount, so it does count toward TotalCredit or TotalDebit.
// Set Options.TypeFromSign to false to leave such rows out of both.
type Summary struct {
	TotalTransactions int          `json:"totalTransactions"`
	TotalAmount       float64      `json:"totalAmount"`
	TotalCredit       float64      `json:"totalCredit"`
	TotalDebit        float64      `json:"totalDebit"`
	Tagged            int          `json:"tagged"`
	Untagged          int          `json:"untagged"`
	Banks             []BankTotal  `json:"bankBreakdown"`
	Tags              []TagTotal   `json:"tagBreakdown"`
	Months            []MonthTotal `json:"monthlyBreakdown"`
}

// BankTotal groups rows by the source transaction's bank id.
type BankTotal struct {
	BankID string  `json:"bankId"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
	Credit float64 `json:"credit"`
	Debit  float64 `json:"debit"`
}

// TagTotal groups rows by tag name. A row with several tags counts once per
// distinct tag name.
type TagTotal struct {
	Tag    string  `json:"tag"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// MonthTotal groups rows by the year-month of their date column.
type MonthTotal struct {
	Month  string  `json:"month"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
	Credit float64 `json:"credit"`
	Debit  float64 `json:"debit"`
}

// Aggregator computes summaries. It holds no per-call state.
type Aggregator struct {
	opts Options
}

// New builds an Aggregator; empty column names fall back to the defaults.
func New(opts Options) *Aggregator {
	def := DefaultOptions()
	if opts.AmountColumn == "" {
		opts.AmountColumn = def.AmountColumn
	}
	if opts.TypeColumn == "" {
		opts.TypeColumn = def.TypeColumn
	}
	if opts.DateColumn == "" {
		opts.DateColumn = def.DateColumn
	}
	return &Aggregator{opts: opts}
}

// Aggregate uses DefaultOptions.
func Aggregate(rows []domain.CanonicalRow, sources []domain.RawTransaction, registry domain.Registry) Summary {
	return New(DefaultOptions()).Aggregate(rows, sources, registry)
}

// Aggregate summarizes rows. sources are the raw transactions the rows were
// built from, matched by id; registry supplies each bank's conditions.
func (a *Aggregator) Aggregate(rows []domain.CanonicalRow, sources []domain.RawTransaction, registry domain.Registry) Summary {
	idx := indexSources(sources)
	acc := newAccumulator()
	for _, row := range rows {
		a.add(acc, row, idx, registry)
	}
	return acc.summary()
}

// AggregateParallel splits rows into chunks summarized concurrently by up to
// workers goroutines, then merges the partial results in chunk order.
func (a *Aggregator) AggregateParallel(ctx context.Context, rows []domain.CanonicalRow, sources []domain.RawTransaction, registry domain.Registry, workers int) (Summary, error) {
	if workers <= 1 || len(rows) < 2 {
		return a.Aggregate(rows, sources, registry), nil
	}

	idx := indexSources(sources)
	chunk := (len(rows) + workers - 1) / workers
	partials := make([]*accumulator, 0, workers)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		acc := newAccumulator()
		partials = append(partials, acc)
		part := rows[start:end]
		g.Go(func() error {
			for _, row := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				a.add(acc, row, idx, registry)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	total := newAccumulator()
	for _, p := range partials {
		total.merge(p)
	}
	return total.summary(), nil
}

func indexSources(sources []domain.RawTransaction) map[string]*domain.RawTransaction {
	idx := make(map[string]*domain.RawTransaction, len(sources))
	for i := range sources {
		idx[sources[i].ID] = &sources[i]
	}
	return idx
}

func (a *Aggregator) add(acc *accumulator, row domain.CanonicalRow, idx map[string]*domain.RawTransaction, registry domain.Registry) {
	src := idx[row.ID]
	var mapping *domain.BankMapping
	if src != nil && registry != nil {
		mapping, _ = registry.Lookup(src.BankID)
	}

	amount := a.ResolveAmount(row, src, mapping)
	dir := a.ResolveDirection(row, src, mapping, amount)
	amt := decimal.NewFromFloat(amount)

	acc.count++
	acc.amount = acc.amount.Add(amt)
	addDirection(&acc.credit, &acc.debit, dir, amt)

	rowTags := row.Tags()
	if len(rowTags) > 0 {
		acc.tagged++
	} else {
		acc.untagged++
	}

	if src != nil && src.BankID != "" {
		b := acc.bank(src.BankID)
		b.count++
		b.amount = b.amount.Add(amt)
		addDirection(&b.credit, &b.debit, dir, amt)
	}

	seen := make(map[string]bool, len(rowTags))
	for _, t := range rowTags {
		name := t.Name
		if name == "" {
			name = t.ID
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		b := acc.tag(name)
		b.count++
		b.amount = b.amount.Add(amt)
	}

	if date := a.rowDate(row, src); !parse.IsEpoch(date) {
		b := acc.month(parse.MonthKey(date))
		b.count++
		b.amount = b.amount.Add(amt)
		addDirection(&b.credit, &b.debit, dir, amt)
	}
}

// rowDate reads the canonical date column, falling back to a raw field of
// the same name when the canonical cell is blank.
func (a *Aggregator) rowDate(row domain.CanonicalRow, src *domain.RawTransaction) time.Time {
	v := row.Get(a.opts.DateColumn)
	if v.IsEmpty() && src != nil {
		if rv, ok := src.Fields[a.opts.DateColumn]; ok {
			v = rv
		}
	}
	if v.IsList() {
		return parse.Epoch
	}
	return parse.ParseDate(v.String())
}

type bucket struct {
	count  int
	amount decimal.Decimal
	credit decimal.Decimal
	debit  decimal.Decimal
}

type accumulator struct {
	count    int
	amount   decimal.Decimal
	credit   decimal.Decimal
	debit    decimal.Decimal
	tagged   int
	untagged int
	banks    map[string]*bucket
	tags     map[string]*bucket
	months   map[string]*bucket
}

func newAccumulator() *accumulator {
	return &accumulator{
		banks:  map[string]*bucket{},
		tags:   map[string]*bucket{},
		months: map[string]*bucket{},
	}
}

func addDirection(credit, debit *decimal.Decimal, dir Direction, amt decimal.Decimal) {
	switch dir {
	case DirectionCredit:
		*credit = credit.Add(amt.Abs())
	case DirectionDebit:
		*debit = debit.Add(amt.Abs())
	}
}

func (acc *accumulator) bank(key string) *bucket  { return getBucket(acc.banks, key) }
func (acc *accumulator) tag(key string) *bucket   { return getBucket(acc.tags, key) }
func (acc *accumulator) month(key string) *bucket { return getBucket(acc.months, key) }

func getBucket(m map[string]*bucket, key string) *bucket {
	b, ok := m[key]
	if !ok {
		b = &bucket{}
		m[key] = b
	}
	return b
}

func (acc *accumulator) merge(o *accumulator) {
	acc.count += o.count
	acc.amount = acc.amount.Add(o.amount)
	acc.credit = acc.credit.Add(o.credit)
	acc.debit = acc.debit.Add(o.debit)
	acc.tagged += o.tagged
	acc.untagged += o.untagged
	mergeBuckets(acc.banks, o.banks)
	mergeBuckets(acc.tags, o.tags)
	mergeBuckets(acc.months, o.months)
}

func mergeBuckets(dst, src map[string]*bucket) {
	for k, s := range src {
		d := getBucket(dst, k)
		d.count += s.count
		d.amount = d.amount.Add(s.amount)
		d.credit = d.credit.Add(s.credit)
		d.debit = d.debit.Add(s.debit)
	}
}

func (acc *accumulator) summary() Summary {
	s := Summary{
		TotalTransactions: acc.count,
		TotalAmount:       acc.amount.InexactFloat64(),
		TotalCredit:       acc.credit.InexactFloat64(),
		TotalDebit:        acc.debit.InexactFloat64(),
		Tagged:            acc.tagged,
		Untagged:          acc.untagged,
		Banks:             []BankTotal{},
		Tags:              []TagTotal{},
		Months:            []MonthTotal{},
	}

	for _, k := range sortedKeys(acc.banks) {
		b := acc.banks[k]
		s.Banks = append(s.Banks, BankTotal{
			BankID: k,
			Count:  b.count,
			Amount: b.amount.InexactFloat64(),
			Credit: b.credit.InexactFloat64(),
			Debit:  b.debit.InexactFloat64(),
		})
	}
	for _, k := range sortedKeys(acc.tags) {
		b := acc.tags[k]
		s.Tags = append(s.Tags, TagTotal{Tag: k, Count: b.count, Amount: b.amount.InexactFloat64()})
	}
	for _, k := range sortedKeys(acc.months) {
		b := acc.months[k]
		s.Months = append(s.Months, MonthTotal{
			Month:  k,
			Count:  b.count,
			Amount: b.amount.InexactFloat64(),
			Credit: b.credit.InexactFloat64(),
			Debit:  b.debit.InexactFloat64(),
		})
	}
	return s
}

func sortedKeys(m map[string]*bucket) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
