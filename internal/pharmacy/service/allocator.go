package service

import (
	"github.com/curamed/curamed-backend/internal/pharmacy/repository"
	"github.com/curamed/curamed-backend/pkg/errors"
)

// Allocation pairs a batch with the quantity to take from it.
type Allocation struct {
	Batch    *repository.Batch
	Quantity int
}

// planFEFO walks batches in the order the repository locked them (earliest
// expiry first, undated batches last, ties by creation then id) and takes
// greedily until the request is covered or stock runs out. Pure planning:
// nothing is mutated.
func planFEFO(batches []*repository.Batch, requested int) ([]Allocation, int) {
	plan := make([]Allocation, 0, len(batches))
	remaining := requested

	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		if batch.Quantity <= 0 {
			continue
		}

		take := batch.Quantity
		if take > remaining {
			take = remaining
		}

		plan = append(plan, Allocation{Batch: batch, Quantity: take})
		remaining -= take
	}

	return plan, requested - remaining
}

// AllocateFEFO plans a strict allocation: either the full requested quantity
// is covered or an insufficient-stock error reports what was available.
func AllocateFEFO(itemID string, batches []*repository.Batch, requested int) ([]Allocation, error) {
	plan, allocated := planFEFO(batches, requested)
	if allocated < requested {
		available := 0
		for _, b := range batches {
			available += b.Quantity
		}
		return nil, errors.InsufficientStock(itemID, requested, available)
	}
	return plan, nil
}

// AllocatePartial plans a best-effort allocation and reports how much it
// could cover. Used by requisition fulfillment, where a shortfall is a
// partial issue rather than a failure.
func AllocatePartial(batches []*repository.Batch, requested int) ([]Allocation, int) {
	return planFEFO(batches, requested)
}
