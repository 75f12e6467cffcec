// Package core holds the transaction domain model and the statistics engine
// that turns a raw record list into the dashboard's derived numbers.
package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// topLimit caps every counterparty rollup.
const topLimit = 10

type (
	// CounterPartyStat is one counterparty's rollup within a credit or debit
	// partition: summed amount and number of matching records.
	CounterPartyStat struct {
		Name   string          `json:"name"`
		Amount decimal.Decimal `json:"amount"`
		Count  int             `json:"count"`
	}

	// DailyTotal carries credit and debit sums for one calendar day.
	// Date is formatted YYYY-MM-DD.
	DailyTotal struct {
		Date   string          `json:"date"`
		Credit decimal.Decimal `json:"credit"`
		Debit  decimal.Decimal `json:"debit"`
	}

	// MethodCount is the record count for one transaction method.
	MethodCount struct {
		Method TxnMethod `json:"method"`
		Count  int       `json:"count"`
	}

	// Stats is everything the dashboard derives from a record list. It is
	// ephemeral: recomputed from the current list on every change, never
	// stored.
	Stats struct {
		TotalCredit             decimal.Decimal    `json:"totalCredit"`
		TotalDebit              decimal.Decimal    `json:"totalDebit"`
		NetBalance              decimal.Decimal    `json:"netBalance"`
		TotalTransactions       int                `json:"totalTransactions"`
		AvgTransactionAmount    decimal.Decimal    `json:"avgTransactionAmount"`
		TopCounterParties       []CounterPartyStat `json:"topCounterParties"`
		TopCreditCounterParties []CounterPartyStat `json:"topCreditCounterParties"`
		TopDebitCounterParties  []CounterPartyStat `json:"topDebitCounterParties"`
		DailyTrends             []DailyTotal       `json:"dailyTrends"`
		TransactionsByMethod    []MethodCount      `json:"transactionsByMethod"`
	}
)

// Aggregate computes Stats from a record list. It is a pure function: no
// side effects, deterministic for a given input order.
//
// Only credit and debit records contribute; every other txnType is excluded
// from every statistic. The raw list shown in the grid is unaffected by this
// filtering.
func Aggregate(txns []Transaction) Stats {
	stats := Stats{
		TopCounterParties:       []CounterPartyStat{},
		TopCreditCounterParties: []CounterPartyStat{},
		TopDebitCounterParties:  []CounterPartyStat{},
		DailyTrends:             []DailyTotal{},
		TransactionsByMethod:    []MethodCount{},
	}

	credits := make([]Transaction, 0, len(txns))
	debits := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		switch t.TxnType {
		case TypeCredit:
			credits = append(credits, t)
		case TypeDebit:
			debits = append(debits, t)
		}
	}
	filtered := len(credits) + len(debits)

	for _, t := range credits {
		stats.TotalCredit = stats.TotalCredit.Add(t.Amount)
	}
	for _, t := range debits {
		stats.TotalDebit = stats.TotalDebit.Add(t.Amount)
	}
	stats.NetBalance = stats.TotalCredit.Sub(stats.TotalDebit)
	stats.TotalTransactions = filtered
	if filtered > 0 {
		total := stats.TotalCredit.Add(stats.TotalDebit)
		stats.AvgTransactionAmount = total.Div(decimal.NewFromInt(int64(filtered)))
	}

	stats.TopCreditCounterParties = topCounterParties(credits)
	stats.TopDebitCounterParties = topCounterParties(debits)

	combined := make([]Transaction, 0, filtered)
	combined = append(combined, credits...)
	combined = append(combined, debits...)
	stats.TopCounterParties = topCounterParties(combined)

	stats.DailyTrends = dailyTrends(credits, debits)
	stats.TransactionsByMethod = methodHistogram(combined)

	return stats
}

// topCounterParties groups records by counterparty, sums amounts and counts
// occurrences, then returns at most topLimit entries sorted descending by
// amount. The sort is stable so ties keep first-encounter order.
func topCounterParties(txns []Transaction) []CounterPartyStat {
	index := make(map[string]int)
	rollup := []CounterPartyStat{}
	for _, t := range txns {
		i, ok := index[t.CounterParty]
		if !ok {
			i = len(rollup)
			index[t.CounterParty] = i
			rollup = append(rollup, CounterPartyStat{Name: t.CounterParty})
		}
		rollup[i].Amount = rollup[i].Amount.Add(t.Amount)
		rollup[i].Count++
	}

	sort.SliceStable(rollup, func(a, b int) bool {
		return rollup[a].Amount.GreaterThan(rollup[b].Amount)
	})
	if len(rollup) > topLimit {
		rollup = rollup[:topLimit]
	}
	return rollup
}

// dailyTrends accumulates per-day credit and debit sums and returns them in
// chronological order. Days without transactions are not represented.
func dailyTrends(credits, debits []Transaction) []DailyTotal {
	index := make(map[string]int)
	trends := []DailyTotal{}

	bucket := func(t Transaction) *DailyTotal {
		day := t.TxnDatetime.Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(trends)
			index[day] = i
			trends = append(trends, DailyTotal{Date: day})
		}
		return &trends[i]
	}

	for _, t := range credits {
		b := bucket(t)
		b.Credit = b.Credit.Add(t.Amount)
	}
	for _, t := range debits {
		b := bucket(t)
		b.Debit = b.Debit.Add(t.Amount)
	}

	// ISO dates sort chronologically as strings.
	sort.Slice(trends, func(a, b int) bool { return trends[a].Date < trends[b].Date })
	return trends
}

// methodHistogram counts records per transaction method. Sorted by method
// name so output is deterministic; ordering carries no meaning.
func methodHistogram(txns []Transaction) []MethodCount {
	counts := make(map[TxnMethod]int)
	for _, t := range txns {
		counts[t.TxnMethod]++
	}

	hist := make([]MethodCount, 0, len(counts))
	for method, count := range counts {
		hist = append(hist, MethodCount{Method: method, Count: count})
	}
	sort.Slice(hist, func(a, b int) bool { return hist[a].Method < hist[b].Method })
	return hist
}
