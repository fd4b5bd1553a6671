package debt

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/finledger/internal/shared"
)

// BuildInstallments splits the remaining balance into count installments
// stepped by interval from start. The last one absorbs the rounding residue
// so the plan sums to the remaining amount exactly.
func BuildInstallments(d Debt, count int, interval Interval, start time.Time, userID string, now time.Time) ([]Schedule, error) {
	if count < 1 {
		return nil, fmt.Errorf("debt: %w: installments count must be at least 1", shared.ErrInvalidAmount)
	}
	if d.RemainingAmount <= 0 {
		return nil, fmt.Errorf("debt: %w: nothing left to schedule", shared.ErrInvalidState)
	}
	amounts := shared.Split(d.RemainingAmount, count)
	for _, amount := range amounts {
		if amount <= 0 {
			return nil, fmt.Errorf("debt: %w: %d installments leave a non-positive installment of %s",
				shared.ErrInvalidAmount, count, shared.Numeric(amount))
		}
	}
	debtID := d.ID
	plan := make([]Schedule, 0, count)
	for i, amount := range amounts {
		due, err := interval.Step(start, i)
		if err != nil {
			return nil, err
		}
		plan = append(plan, Schedule{
			ID:         uuid.New(),
			EntityType: d.DebtorType,
			EntityID:   d.DebtorID,
			DebtID:     &debtID,
			Amount:     amount,
			DueDate:    due,
			Status:     SchedulePending,
			Notes:      fmt.Sprintf("Installment %d of %d", i+1, count),
			CreatedBy:  userID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return plan, nil
}

// Application records what a payment did to one installment.
type Application struct {
	Schedule Schedule
	Applied  float64
}

// ApplyToInstallments consumes amount across open installments ordered by
// due date. Fully covered installments become PAID; the first one that is
// not fully covered is reduced in place. Returns only touched installments.
func ApplyToInstallments(open []Schedule, amount float64, paymentRef string, now time.Time) []Application {
	left := amount
	var touched []Application
	for _, s := range open {
		if left <= 0 {
			break
		}
		if s.Status != SchedulePending && s.Status != ScheduleOverdue {
			continue
		}
		applied := s.Amount
		if left >= s.Amount {
			s.Status = SchedulePaid
			s.Notes = appendNote(s.Notes, fmt.Sprintf("paid by payment %s", paymentRef))
			left = shared.Sub(left, applied)
		} else {
			applied = left
			s.Amount = shared.Sub(s.Amount, left)
			s.Notes = appendNote(s.Notes, fmt.Sprintf("partial payment %s by payment %s", shared.Numeric(applied), paymentRef))
			left = 0
		}
		s.UpdatedAt = now
		touched = append(touched, Application{Schedule: s, Applied: applied})
	}
	return touched
}

func appendNote(notes, add string) string {
	if notes == "" {
		return add
	}
	return notes + " (" + add + ")"
}
