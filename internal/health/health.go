// Package health computes the composite financial health score: four
// weighted sub-scores (savings ratio, budget adherence, goal progress, bill
// management) summed into a 0-100 total with a qualitative rating.
//
// The engine is a pure function of the four record collections and an
// explicit evaluation date. It performs no I/O, reads no clocks, never
// mutates its inputs, and does not depend on the order of the records.
package health

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finhealth/internal/domain"
)

// Labels and maximum contributions of the four sub-scores. The maximums sum
// to 100, so the total is bounded without any extra clamping.
const (
	savingsLabel = "Savings Ratio"
	budgetLabel  = "Budget Adherence"
	goalLabel    = "Goal Progress"
	billLabel    = "Bill Management"

	maxSavingsScore = 40
	maxBudgetScore  = 25
	maxGoalScore    = 25
	maxBillScore    = 10
)

// overduePenalty is subtracted from the bill sub-score per overdue bill.
// The penalty is not bounded before flooring: four or more overdue bills all
// clamp to zero, and there is no partial credit for "slightly overdue".
const overduePenalty = 3

// Scoring policy values. The absence policies are intentionally asymmetric:
// missing budgets or goals score neutrally, missing bills earn full credit,
// and zero income earns nothing. Zero-cap budgets are skipped from the
// adherence average while zero-target goals count as zero progress; both
// behaviors are confirmed product decisions, kept here so a reversal would
// not touch calculator internals.
var (
	// neutralShare is the fraction of a sub-score granted when there is no
	// data to judge (no budgets for the month, no goals at all).
	neutralShare = decimal.NewFromFloat(0.5)

	// overspendCap bounds the spent/budget ratio so that spending beyond
	// 150% of a cap contributes exactly zero adherence, never a negative.
	overspendCap = decimal.NewFromFloat(1.5)
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	fifty   = decimal.NewFromInt(50)
)

// SubScore is one weighted component of the total score.
type SubScore struct {
	Score    int    `json:"score"`
	MaxScore int    `json:"maxScore"`
	Label    string `json:"label"`
}

// Score is the full breakdown. The API layer serializes it as-is.
type Score struct {
	TotalScore      int      `json:"totalScore"`
	Rating          string   `json:"rating"`
	SavingsRatio    SubScore `json:"savingsRatio"`
	BudgetAdherence SubScore `json:"budgetAdherence"`
	GoalProgress    SubScore `json:"goalProgress"`
	BillManagement  SubScore `json:"billManagement"`
}

// Calculate runs the four calculators against a consistent snapshot of the
// caller's records and aggregates the result. The calculators have no data
// dependencies on each other; they are invoked in a fixed order here only
// for deterministic error reporting. Either a complete Score is returned or
// an error - never a partial result.
func Calculate(transactions []domain.Transaction, budgets []domain.Budget, goals []domain.Goal, bills []domain.Bill, evaluationDate civil.Date) (*Score, error) {
	savings, err := SavingsRatio(transactions)
	if err != nil {
		return nil, err
	}

	budget, err := BudgetAdherence(transactions, budgets, evaluationDate)
	if err != nil {
		return nil, err
	}

	goal, err := GoalProgress(goals)
	if err != nil {
		return nil, err
	}

	bill, err := BillManagement(bills, evaluationDate)
	if err != nil {
		return nil, err
	}

	total := savings.Score + budget.Score + goal.Score + bill.Score

	return &Score{
		TotalScore:      total,
		Rating:          Rating(total),
		SavingsRatio:    savings,
		BudgetAdherence: budget,
		GoalProgress:    goal,
		BillManagement:  bill,
	}, nil
}

// SavingsRatio scores the income-vs-expense ratio out of 40.
//
// With zero income the score is zero: savings cannot be assessed, which is
// distinct from a perfect savings rate. Otherwise the savings rate
// (income-expenses)/income*100 is scored as rate/50*40 scaled by a banding
// multiplier that rewards high savings disproportionately; a zero or
// negative rate earns nothing.
func SavingsRatio(transactions []domain.Transaction) (SubScore, error) {
	sub := SubScore{MaxScore: maxSavingsScore, Label: savingsLabel}

	var income, expenses decimal.Decimal
	for i := range transactions {
		t := &transactions[i]
		if err := checkTransaction(savingsLabel, t); err != nil {
			return SubScore{}, err
		}
		if t.Type == domain.TypeIncome {
			income = income.Add(t.Amount)
		} else {
			expenses = expenses.Add(t.Amount)
		}
	}

	if income.IsZero() {
		return sub, nil
	}

	rate := income.Sub(expenses).Div(income).Mul(hundred)

	var multiplier decimal.Decimal
	switch {
	case rate.GreaterThanOrEqual(fifty):
		sub.Score = maxSavingsScore
		return sub, nil
	case rate.GreaterThanOrEqual(decimal.NewFromInt(30)):
		multiplier = decimal.NewFromFloat(0.9)
	case rate.GreaterThanOrEqual(decimal.NewFromInt(20)):
		multiplier = decimal.NewFromFloat(0.7)
	case rate.GreaterThanOrEqual(decimal.NewFromInt(10)):
		multiplier = decimal.NewFromFloat(0.5)
	case rate.IsPositive():
		multiplier = decimal.NewFromFloat(0.3)
	default:
		return sub, nil
	}

	base := rate.Div(fifty).Mul(decimal.NewFromInt(maxSavingsScore))
	sub.Score = clamp(roundToInt(base.Mul(multiplier)), 0, maxSavingsScore)
	return sub, nil
}

// BudgetAdherence scores current-month spending against budget caps out of
// 25. Without budgets for the evaluation month the score is the neutral
// default: absent budgeting data is neither rewarded nor punished.
//
// Per evaluated budget, adherence is 1 - min(spent/cap, 1.5) floored at
// zero; budgets with a non-positive cap are skipped and do not dilute the
// average.
func BudgetAdherence(transactions []domain.Transaction, budgets []domain.Budget, evaluationDate civil.Date) (SubScore, error) {
	sub := SubScore{MaxScore: maxBudgetScore, Label: budgetLabel}

	if !evaluationDate.IsValid() {
		return SubScore{}, newComputationError(budgetLabel, "invalid evaluation date %v", evaluationDate)
	}

	neutral := clamp(roundToInt(neutralShare.Mul(decimal.NewFromInt(maxBudgetScore))), 0, maxBudgetScore)

	if len(budgets) == 0 {
		sub.Score = neutral
		return sub, nil
	}

	month := monthKey(evaluationDate)

	var current []*domain.Budget
	for i := range budgets {
		b := &budgets[i]
		if !validMonth(b.Month) {
			return SubScore{}, newComputationError(budgetLabel, "budget %s: malformed month %q", b.ID, b.Month)
		}
		if b.Month == month {
			current = append(current, b)
		}
	}
	if len(current) == 0 {
		sub.Score = neutral
		return sub, nil
	}

	// Pre-aggregate current-month expense totals per category so the
	// per-budget lookup below stays O(budgets).
	spending := make(map[string]decimal.Decimal)
	for i := range transactions {
		t := &transactions[i]
		if err := checkTransaction(budgetLabel, t); err != nil {
			return SubScore{}, err
		}
		if !t.Date.IsValid() {
			return SubScore{}, newComputationError(budgetLabel, "transaction %s: invalid date %v", t.ID, t.Date)
		}
		if t.Type != domain.TypeExpense {
			continue
		}
		if monthKey(t.Date) != month {
			continue
		}
		spending[t.Category] = spending[t.Category].Add(t.Amount)
	}

	var total decimal.Decimal
	evaluated := 0
	for _, b := range current {
		if !b.Amount.IsPositive() {
			continue
		}
		ratio := spending[b.Category].Div(b.Amount)
		if ratio.GreaterThan(overspendCap) {
			ratio = overspendCap
		}
		adherence := one.Sub(ratio)
		if adherence.IsNegative() {
			adherence = decimal.Zero
		}
		total = total.Add(adherence)
		evaluated++
	}

	average := neutralShare
	if evaluated > 0 {
		average = total.Div(decimal.NewFromInt(int64(evaluated)))
	}

	sub.Score = clamp(roundToInt(average.Mul(decimal.NewFromInt(maxBudgetScore))), 0, maxBudgetScore)
	return sub, nil
}

// GoalProgress scores average progress toward savings goals out of 25.
// Without goals the score is the neutral default. Progress per goal is
// min(current/target, 1); goals with a non-positive target contribute zero
// progress and still count toward the denominator.
func GoalProgress(goals []domain.Goal) (SubScore, error) {
	sub := SubScore{MaxScore: maxGoalScore, Label: goalLabel}

	if len(goals) == 0 {
		sub.Score = clamp(roundToInt(neutralShare.Mul(decimal.NewFromInt(maxGoalScore))), 0, maxGoalScore)
		return sub, nil
	}

	var total decimal.Decimal
	for i := range goals {
		g := &goals[i]
		if !g.TargetAmount.IsPositive() {
			continue
		}
		progress := g.CurrentAmount.Div(g.TargetAmount)
		if progress.GreaterThan(one) {
			progress = one
		}
		total = total.Add(progress)
	}

	average := total.Div(decimal.NewFromInt(int64(len(goals))))
	sub.Score = clamp(roundToInt(average.Mul(decimal.NewFromInt(maxGoalScore))), 0, maxGoalScore)
	return sub, nil
}

// BillManagement scores bill punctuality out of 10. Without bills the score
// is the full 10: having no obligations to miss is not penalized. Each
// overdue bill (due strictly before the evaluation date) costs 3 points,
// floored at zero.
func BillManagement(bills []domain.Bill, evaluationDate civil.Date) (SubScore, error) {
	sub := SubScore{MaxScore: maxBillScore, Label: billLabel}

	if !evaluationDate.IsValid() {
		return SubScore{}, newComputationError(billLabel, "invalid evaluation date %v", evaluationDate)
	}

	if len(bills) == 0 {
		sub.Score = maxBillScore
		return sub, nil
	}

	overdue := 0
	for i := range bills {
		b := &bills[i]
		if !b.DueDate.IsValid() {
			return SubScore{}, newComputationError(billLabel, "bill %s: invalid due date %v", b.ID, b.DueDate)
		}
		if b.DueDate.Before(evaluationDate) {
			overdue++
		}
	}

	score := maxBillScore - overdue*overduePenalty
	if score < 0 {
		score = 0
	}
	sub.Score = score
	return sub, nil
}

// Rating maps a total score to its qualitative label. Thresholds are
// inclusive lower bounds, checked top-down; the first match wins.
func Rating(total int) string {
	switch {
	case total >= 90:
		return "Excellent"
	case total >= 75:
		return "Very Good"
	case total >= 60:
		return "Good"
	case total >= 45:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

// checkTransaction rejects records the engine must not silently skip.
func checkTransaction(component string, t *domain.Transaction) error {
	if t.Amount.IsNegative() {
		return newComputationError(component, "transaction %s: negative amount %s", t.ID, t.Amount)
	}
	if !t.Type.Valid() {
		return newComputationError(component, "transaction %s: unknown type %q", t.ID, t.Type)
	}
	return nil
}

// monthKey renders a date's "YYYY-MM" budget period key.
func monthKey(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// validMonth reports whether s is a well-formed "YYYY-MM" period key.
func validMonth(s string) bool {
	if len(s) != 7 {
		return false
	}
	_, err := time.Parse("2006-01", s)
	return err == nil
}

// roundToInt rounds half away from zero to the nearest integer.
func roundToInt(d decimal.Decimal) int {
	return int(d.Round(0).IntPart())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
