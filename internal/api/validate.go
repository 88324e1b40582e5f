package api

import (
	"fmt"
	"strings"

	"wavesched/internal/model"
)

func validateWaveRequest(req *model.WaveRequest) error {
	if len(req.Orders) == 0 {
		return fmt.Errorf("orders must not be empty")
	}
	if req.ReferenceStart.IsZero() {
		return fmt.Errorf("referenceStart is required")
	}
	if req.SlotMinutes < 0 {
		return fmt.Errorf("slotMinutes must be >= 0")
	}
	if req.HorizonHours < 0 {
		return fmt.Errorf("horizonHours must be >= 0")
	}
	if req.TimeLimitSec < 0 {
		return fmt.Errorf("timeLimitSec must be >= 0")
	}
	seen := map[string]bool{}
	for i, o := range req.Orders {
		if o.ID == "" {
			return fmt.Errorf("order %d: id is required", i)
		}
		if seen[o.ID] {
			return fmt.Errorf("duplicate order id: %s", o.ID)
		}
		seen[o.ID] = true
		if o.Priority < 1 || o.Priority > 5 {
			return fmt.Errorf("order %s: priority must be 1..5", o.ID)
		}
		if o.ShippingDeadline.IsZero() {
			return fmt.Errorf("order %s: shippingDeadline is required", o.ID)
		}
	}
	for i, w := range req.Workers {
		if w.ID == "" {
			return fmt.Errorf("worker %d: id is required", i)
		}
		if w.HourlyRate < 0 {
			return fmt.Errorf("worker %s: hourlyRate must be >= 0", w.ID)
		}
	}
	for i, e := range req.Equipment {
		if e.ID == "" {
			return fmt.Errorf("equipment %d: id is required", i)
		}
		if e.Capacity < 0 {
			return fmt.Errorf("equipment %s: capacity must be >= 0", e.ID)
		}
	}
	if req.ObjectiveWeights != nil {
		allowed := map[string]struct{}{"deadline": {}, "labor": {}, "equipment": {}, "utilization": {}}
		for k, v := range req.ObjectiveWeights {
			if v < 0 {
				return fmt.Errorf("objective weight %s must be >= 0", k)
			}
			if _, ok := allowed[strings.ToLower(k)]; !ok {
				return fmt.Errorf("unknown objective weight: %s (allowed: deadline,labor,equipment,utilization)", k)
			}
		}
	}
	return nil
}
