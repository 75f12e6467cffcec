package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func txn(txnType TxnType, amount string, party string, at time.Time) Transaction {
	return Transaction{
		UserEmail:    "user@example.com",
		Amount:       decimal.RequireFromString(amount),
		TxnMethod:    MethodCard,
		TxnMode:      ModeOnline,
		TxnType:      txnType,
		TxnRef:       "ref",
		CounterParty: party,
		TxnDatetime:  at,
	}
}

func TestAggregateTotals(t *testing.T) {
	day := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	stats := Aggregate([]Transaction{
		txn(TypeCredit, "100", "partyA", day),
		txn(TypeDebit, "40", "partyB", day),
		txn(TypeCredit, "60", "partyA", day),
	})

	if !stats.TotalCredit.Equal(decimal.NewFromInt(160)) {
		t.Fatalf("totalCredit = %s, want 160", stats.TotalCredit)
	}
	if !stats.TotalDebit.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("totalDebit = %s, want 40", stats.TotalDebit)
	}
	if !stats.NetBalance.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("netBalance = %s, want 120", stats.NetBalance)
	}
	if stats.TotalTransactions != 3 {
		t.Fatalf("totalTransactions = %d, want 3", stats.TotalTransactions)
	}
	// (160 + 40) / 3
	want := decimal.NewFromInt(200).Div(decimal.NewFromInt(3))
	if !stats.AvgTransactionAmount.Equal(want) {
		t.Fatalf("avgTransactionAmount = %s, want %s", stats.AvgTransactionAmount, want)
	}

	if len(stats.TopCreditCounterParties) != 1 {
		t.Fatalf("expected 1 credit counterparty, got %d", len(stats.TopCreditCounterParties))
	}
	top := stats.TopCreditCounterParties[0]
	if top.Name != "partyA" || !top.Amount.Equal(decimal.NewFromInt(160)) || top.Count != 2 {
		t.Fatalf("unexpected top credit counterparty: %+v", top)
	}
}

func TestAggregateNetBalanceInvariant(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	lists := [][]Transaction{
		{},
		{txn(TypeCredit, "0.10", "a", day), txn(TypeDebit, "0.20", "b", day)},
		{
			txn(TypeCredit, "19.99", "a", day),
			txn(TypeDebit, "7.45", "b", day),
			txn(TypeDebit, "12.54", "a", day),
			txn(TypeCredit, "1000000.01", "c", day),
		},
	}
	for i, txns := range lists {
		stats := Aggregate(txns)
		if !stats.TotalCredit.Sub(stats.TotalDebit).Equal(stats.NetBalance) {
			t.Fatalf("case %d: credit-debit=%s, netBalance=%s",
				i, stats.TotalCredit.Sub(stats.TotalDebit), stats.NetBalance)
		}
		if stats.TotalTransactions > 0 {
			back := stats.AvgTransactionAmount.Mul(decimal.NewFromInt(int64(stats.TotalTransactions)))
			total := stats.TotalCredit.Add(stats.TotalDebit)
			if back.Sub(total).Abs().GreaterThan(decimal.RequireFromString("0.000001")) {
				t.Fatalf("case %d: avg*count=%s drifted from total=%s", i, back, total)
			}
		}
	}
}

func TestAggregateExcludesOtherTypes(t *testing.T) {
	day := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)
	stats := Aggregate([]Transaction{
		txn(TypeCredit, "50", "a", day),
		txn(TypeTransfer, "999", "a", day),
		txn(TypeDeposit, "999", "b", day),
		txn(TypeWithdrawal, "999", "c", day),
		txn(TxnType("garbage"), "999", "d", day),
	})

	if stats.TotalTransactions != 1 {
		t.Fatalf("totalTransactions = %d, want 1", stats.TotalTransactions)
	}
	if !stats.TotalCredit.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("totalCredit = %s, want 50", stats.TotalCredit)
	}
	if len(stats.TransactionsByMethod) != 1 || stats.TransactionsByMethod[0].Count != 1 {
		t.Fatalf("method histogram should only count credit/debit records: %+v", stats.TransactionsByMethod)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	stats := Aggregate(nil)

	if !stats.TotalCredit.IsZero() || !stats.TotalDebit.IsZero() || !stats.NetBalance.IsZero() {
		t.Fatalf("expected zero totals, got %+v", stats)
	}
	if stats.TotalTransactions != 0 {
		t.Fatalf("totalTransactions = %d, want 0", stats.TotalTransactions)
	}
	if !stats.AvgTransactionAmount.IsZero() {
		t.Fatalf("avgTransactionAmount = %s, want 0", stats.AvgTransactionAmount)
	}
	if len(stats.TopCounterParties) != 0 || len(stats.DailyTrends) != 0 || len(stats.TransactionsByMethod) != 0 {
		t.Fatalf("expected empty sequences, got %+v", stats)
	}
}

func TestTopCounterPartiesOrderAndLimit(t *testing.T) {
	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	var txns []Transaction
	// Twelve distinct counterparties with ascending amounts 1..12.
	parties := []string{"p01", "p02", "p03", "p04", "p05", "p06", "p07", "p08", "p09", "p10", "p11", "p12"}
	for i, p := range parties {
		txns = append(txns, txn(TypeDebit, decimal.NewFromInt(int64(i+1)).String(), p, day))
	}
	// Two ties at amount 5: tie1 seen before tie2.
	txns = append(txns, txn(TypeDebit, "5", "tie1", day), txn(TypeDebit, "5", "tie2", day))

	top := Aggregate(txns).TopDebitCounterParties
	if len(top) != topLimit {
		t.Fatalf("rollup length = %d, want %d", len(top), topLimit)
	}
	for i := 1; i < len(top); i++ {
		if top[i].Amount.GreaterThan(top[i-1].Amount) {
			t.Fatalf("rollup not descending at %d: %s > %s", i, top[i].Amount, top[i-1].Amount)
		}
	}
	// Amount 5 appears three times (p05, tie1, tie2); encounter order must hold.
	var fives []string
	for _, cp := range top {
		if cp.Amount.Equal(decimal.NewFromInt(5)) {
			fives = append(fives, cp.Name)
		}
	}
	if len(fives) != 3 || fives[0] != "p05" || fives[1] != "tie1" || fives[2] != "tie2" {
		t.Fatalf("tie order broken: %v", fives)
	}
}

func TestDailyTrendsChronological(t *testing.T) {
	stats := Aggregate([]Transaction{
		txn(TypeDebit, "5", "a", time.Date(2025, 8, 20, 23, 0, 0, 0, time.UTC)),
		txn(TypeCredit, "10", "a", time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC)),
		txn(TypeCredit, "7", "b", time.Date(2025, 8, 20, 1, 0, 0, 0, time.UTC)),
		txn(TypeDebit, "3", "b", time.Date(2025, 8, 5, 12, 0, 0, 0, time.UTC)),
	})

	trends := stats.DailyTrends
	if len(trends) != 3 {
		t.Fatalf("expected 3 distinct days, got %d", len(trends))
	}
	for i := 1; i < len(trends); i++ {
		if trends[i].Date <= trends[i-1].Date {
			t.Fatalf("dates not strictly ascending: %s then %s", trends[i-1].Date, trends[i].Date)
		}
	}
	last := trends[len(trends)-1]
	if last.Date != "2025-08-20" {
		t.Fatalf("last date = %s, want 2025-08-20", last.Date)
	}
	if !last.Credit.Equal(decimal.NewFromInt(7)) || !last.Debit.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("2025-08-20 totals wrong: credit=%s debit=%s", last.Credit, last.Debit)
	}
}

func TestMethodHistogram(t *testing.T) {
	day := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)
	a := txn(TypeCredit, "1", "x", day)
	b := txn(TypeDebit, "1", "x", day)
	b.TxnMethod = MethodCash
	c := txn(TypeDebit, "1", "y", day)
	c.TxnMethod = MethodCash

	hist := Aggregate([]Transaction{a, b, c}).TransactionsByMethod
	if len(hist) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(hist))
	}
	counts := map[TxnMethod]int{}
	for _, m := range hist {
		counts[m.Method] = m.Count
	}
	if counts[MethodCard] != 1 || counts[MethodCash] != 2 {
		t.Fatalf("unexpected histogram: %+v", hist)
	}
}

func TestAggregateMissingCounterParty(t *testing.T) {
	day := time.Date(2025, 2, 2, 2, 0, 0, 0, time.UTC)
	stats := Aggregate([]Transaction{
		txn(TypeCredit, "10", "", day),
		txn(TypeCredit, "5", "", day),
	})
	if len(stats.TopCreditCounterParties) != 1 {
		t.Fatalf("blank counterparties should group together: %+v", stats.TopCreditCounterParties)
	}
	if stats.TopCreditCounterParties[0].Count != 2 {
		t.Fatalf("count = %d, want 2", stats.TopCreditCounterParties[0].Count)
	}
}
