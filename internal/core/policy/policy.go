package policy

// AccrualRule selects how penalty points accrue on a late return.
type AccrualRule int

const (
	// AccrualPerOverdueDay applies 1 point per day late (current rule).
	AccrualPerOverdueDay AccrualRule = iota
	// AccrualFlatPerLoan applies a flat 2 points per overdue loan
	// regardless of how late it is (legacy rule, kept selectable).
	AccrualFlatPerLoan
)

const flatPointsPerLoan = 2

// fallbackPointsPerOverdueLoan is used when a user's stored points were
// never initialized: points are derived from currently-overdue active
// loans at 2 points each, then persisted.
const fallbackPointsPerOverdueLoan = 2

// Tier maps an accumulated-points floor to a borrowing limit.
type Tier struct {
	MinPoints int
	MaxLoans  int
	Level     string
	Message   string
}

// Limit is the outcome of a policy evaluation.
type Limit struct {
	MaxLoans int
	Level    string
	Message  string
}

// Suspended reports whether borrowing is blocked outright. This check
// precedes the active-loan-count check in the borrow flow.
func (l Limit) Suspended() bool {
	return l.MaxLoans == 0
}

// DefaultTiers is the authoritative tier table. Ordered by MinPoints
// descending; the first tier whose floor the points reach wins.
var DefaultTiers = []Tier{
	{MinPoints: 20, MaxLoans: 0, Level: "Suspended", Message: "Borrowing suspended due to accumulated penalty points"},
	{MinPoints: 13, MaxLoans: 4, Level: "Severe", Message: "Severe penalty: borrowing limited to 4 books"},
	{MinPoints: 9, MaxLoans: 6, Level: "Moderate", Message: "Moderate penalty: borrowing limited to 6 books"},
	{MinPoints: 5, MaxLoans: 8, Level: "Mild", Message: "Mild penalty: borrowing limited to 8 books"},
	{MinPoints: 0, MaxLoans: 10, Level: "None", Message: ""},
}

// Engine evaluates borrowing limits from accumulated quarterly penalty
// points. Both the tier table and the accrual rule are injectable so the
// policy can change without touching the loan flow.
type Engine struct {
	tiers   []Tier
	accrual AccrualRule
}

// NewEngine creates an engine with the default tier table and per-day accrual
func NewEngine() *Engine {
	return &Engine{tiers: DefaultTiers, accrual: AccrualPerOverdueDay}
}

// NewEngineWith creates an engine with a custom tier table and accrual rule
func NewEngineWith(tiers []Tier, accrual AccrualRule) *Engine {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	return &Engine{tiers: tiers, accrual: accrual}
}

// ComputeLimit maps accumulated quarterly penalty points to a borrowing limit
func (e *Engine) ComputeLimit(points int) Limit {
	if points < 0 {
		points = 0
	}
	for _, t := range e.tiers {
		if points >= t.MinPoints {
			return Limit{MaxLoans: t.MaxLoans, Level: t.Level, Message: t.Message}
		}
	}
	// Unreachable with a well-formed table (floor tier at 0)
	last := e.tiers[len(e.tiers)-1]
	return Limit{MaxLoans: last.MaxLoans, Level: last.Level, Message: last.Message}
}

// PointsForReturn returns the points to apply for a return that is
// overdueDays late. Returns 0 when the return is on time.
func (e *Engine) PointsForReturn(overdueDays int) int {
	if overdueDays <= 0 {
		return 0
	}
	if e.accrual == AccrualFlatPerLoan {
		return flatPointsPerLoan
	}
	return overdueDays
}

// DerivedPoints computes the fallback point total for a user whose stored
// points were never initialized, from their count of currently-overdue
// active loans within the current quarter.
func (e *Engine) DerivedPoints(overdueActiveLoans int) int {
	if overdueActiveLoans < 0 {
		return 0
	}
	return overdueActiveLoans * fallbackPointsPerOverdueLoan
}
