package debt

import (
	"math"
	"sort"
	"time"

	"github.com/odyssey-erp/finledger/internal/shared"
)

// Risk levels of the overview.
const (
	RiskHealthy  = "HEALTHY"
	RiskWarning  = "WARNING"
	RiskCritical = "CRITICAL"
)

// RiskPolicy holds the tier3 share of receivables above which the book is flagged.
type RiskPolicy struct {
	CriticalRatio float64
	WarningRatio  float64
}

// DefaultRiskPolicy flags more than 40% of receivables over 60 days as critical
// and more than 20% as a warning.
var DefaultRiskPolicy = RiskPolicy{CriticalRatio: 0.4, WarningRatio: 0.2}

// Tier accumulates outstanding balances of one aging bucket.
type Tier struct {
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

func (t *Tier) add(amount float64) {
	t.Amount = shared.Add(t.Amount, amount)
	t.Count++
}

// Tiers splits balances by days overdue: current (not yet due), tier1 1-30,
// tier2 31-60, tier3 over 60.
type Tiers struct {
	Current Tier `json:"current"`
	Tier1   Tier `json:"tier1"`
	Tier2   Tier `json:"tier2"`
	Tier3   Tier `json:"tier3"`
}

// Exposure is the outstanding balance of one counterparty.
type Exposure struct {
	DebtorID   string  `json:"debtorId"`
	TotalDebt  float64 `json:"totalDebt"`
	OldestDays int     `json:"oldestDays"`
	Count      int     `json:"count"`
}

// Aging is the aging snapshot of one side of the book.
type Aging struct {
	Total          float64    `json:"total"`
	Overdue        float64    `json:"overdue"`
	Tiers          Tiers      `json:"tiers"`
	ByCounterparty []Exposure `json:"byCounterparty"`
}

// Overview combines receivables and payables aging.
type Overview struct {
	AsOf           time.Time `json:"asOf"`
	Receivables    Aging     `json:"receivables"`
	Payables       Aging     `json:"payables"`
	TotalNet       float64   `json:"totalNet"`
	LiquidityPulse float64   `json:"liquidityPulse"`
	RiskScore      string    `json:"riskScore"`
}

// DaysOverdue counts whole days elapsed since due; negative when not yet due.
func DaysOverdue(due, asOf time.Time) int {
	return int(asOf.Sub(due).Hours() / 24)
}

// BuildAging buckets the remaining amounts of open debts.
func BuildAging(debts []Debt, asOf time.Time) Aging {
	var aging Aging
	exposures := map[string]*Exposure{}
	for _, d := range debts {
		if !d.Status.Open() || d.RemainingAmount <= 0 {
			continue
		}
		days := DaysOverdue(d.DueDate, asOf)
		switch {
		case days <= 0:
			aging.Tiers.Current.add(d.RemainingAmount)
		case days <= 30:
			aging.Tiers.Tier1.add(d.RemainingAmount)
		case days <= 60:
			aging.Tiers.Tier2.add(d.RemainingAmount)
		default:
			aging.Tiers.Tier3.add(d.RemainingAmount)
		}
		aging.Total = shared.Add(aging.Total, d.RemainingAmount)

		exp, ok := exposures[d.DebtorID]
		if !ok {
			exp = &Exposure{DebtorID: d.DebtorID, OldestDays: days}
			exposures[d.DebtorID] = exp
		}
		exp.TotalDebt = shared.Add(exp.TotalDebt, d.RemainingAmount)
		exp.Count++
		if days > exp.OldestDays {
			exp.OldestDays = days
		}
	}
	aging.Overdue = shared.Add(aging.Tiers.Tier1.Amount, aging.Tiers.Tier2.Amount, aging.Tiers.Tier3.Amount)
	aging.ByCounterparty = make([]Exposure, 0, len(exposures))
	for _, exp := range exposures {
		aging.ByCounterparty = append(aging.ByCounterparty, *exp)
	}
	sort.Slice(aging.ByCounterparty, func(i, j int) bool {
		a, b := aging.ByCounterparty[i], aging.ByCounterparty[j]
		if a.TotalDebt == b.TotalDebt {
			return a.DebtorID < b.DebtorID
		}
		return a.TotalDebt > b.TotalDebt
	})
	return aging
}

// BuildOverview derives net position, liquidity pulse and risk score.
func BuildOverview(receivables, payables Aging, asOf time.Time, policy RiskPolicy) Overview {
	o := Overview{
		AsOf:        asOf,
		Receivables: receivables,
		Payables:    payables,
		TotalNet:    shared.Sub(receivables.Total, payables.Total),
		RiskScore:   policy.Classify(receivables),
	}
	if payables.Total > 0 {
		o.LiquidityPulse = shared.Round2(receivables.Total / payables.Total)
	} else {
		o.LiquidityPulse = receivables.Total
	}
	return o
}

// Classify rates receivables by the share older than 60 days.
func (p RiskPolicy) Classify(receivables Aging) string {
	total := receivables.Total
	if total == 0 {
		total = 1
	}
	ratio := receivables.Tiers.Tier3.Amount / total
	switch {
	case ratio > p.CriticalRatio:
		return RiskCritical
	case ratio > p.WarningRatio:
		return RiskWarning
	default:
		return RiskHealthy
	}
}

// Normalize fills zero thresholds from DefaultRiskPolicy.
func (p RiskPolicy) Normalize() RiskPolicy {
	if p.CriticalRatio <= 0 || math.IsNaN(p.CriticalRatio) {
		p.CriticalRatio = DefaultRiskPolicy.CriticalRatio
	}
	if p.WarningRatio <= 0 || math.IsNaN(p.WarningRatio) {
		p.WarningRatio = DefaultRiskPolicy.WarningRatio
	}
	return p
}
