package model

import "time"

// Core domain types for wave scheduling.

// SKU is immutable reference data for one stock-keeping unit.
type SKU struct {
	ID          string  `json:"id"`
	Zone        int     `json:"zone"` // 1..Z
	PickTimeMin float64 `json:"pickTimeMin"`
	PackTimeMin float64 `json:"packTimeMin"`
	VolumeCuft  float64 `json:"volumeCuft"`
	WeightLbs   float64 `json:"weightLbs"`
	BinID       string  `json:"binId,omitempty"`
}

// OrderItem ties a SKU to a quantity inside one order.
type OrderItem struct {
	SKUID    string `json:"skuId"`
	Quantity int    `json:"quantity"`
}

// Order carries items plus aggregates cached from items x SKU.
// Aggregates are derived data: recompute via ComputeAggregates whenever
// items change, never mutate them independently.
type Order struct {
	ID               string      `json:"id"`
	CustomerID       string      `json:"customerId"`
	Premium          bool        `json:"premium,omitempty"`
	Priority         int         `json:"priority"` // 1 = highest .. 5 = lowest
	CreatedAt        time.Time   `json:"createdAt"`
	ShippingDeadline time.Time   `json:"shippingDeadline"`
	Items            []OrderItem `json:"items"`

	TotalPickTimeMin float64 `json:"totalPickTimeMin"`
	TotalPackTimeMin float64 `json:"totalPackTimeMin"`
	TotalVolumeCuft  float64 `json:"totalVolumeCuft"`
	TotalWeightLbs   float64 `json:"totalWeightLbs"`
}

// ComputeAggregates recomputes the cached order totals from items and the
// supplied SKU snapshot. Unknown SKUs contribute nothing.
func (o *Order) ComputeAggregates(skus map[string]SKU) {
	o.TotalPickTimeMin = 0
	o.TotalPackTimeMin = 0
	o.TotalVolumeCuft = 0
	o.TotalWeightLbs = 0
	for _, it := range o.Items {
		sku, ok := skus[it.SKUID]
		if !ok {
			continue
		}
		q := float64(it.Quantity)
		o.TotalPickTimeMin += sku.PickTimeMin * q
		o.TotalPackTimeMin += sku.PackTimeMin * q
		o.TotalVolumeCuft += sku.VolumeCuft * q
		o.TotalWeightLbs += sku.WeightLbs * q
	}
}

// Worker is a read-only labor resource snapshot for one run.
type Worker struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Skills           []Skill `json:"skills"`
	HourlyRate       float64 `json:"hourlyRate"`
	EfficiencyFactor float64 `json:"efficiencyFactor,omitempty"`
	MaxHoursPerDay   float64 `json:"maxHoursPerDay"`
}

// Efficiency returns the work-rate factor, defaulting to 1 when unset. A
// factor of 2 finishes a stage in half the nominal time.
func (w Worker) Efficiency() float64 {
	if w.EfficiencyFactor <= 0 {
		return 1
	}
	return w.EfficiencyFactor
}

// HasSkill reports whether the worker's skill set contains s.
func (w Worker) HasSkill(s Skill) bool {
	for _, has := range w.Skills {
		if has == s {
			return true
		}
	}
	return false
}

// Equipment is a capacity-limited resource; Capacity is the max concurrent uses.
type Equipment struct {
	ID               string        `json:"id"`
	Type             EquipmentType `json:"type"`
	Capacity         int           `json:"capacity"`
	HourlyCost       float64       `json:"hourlyCost"`
	EfficiencyFactor float64       `json:"efficiencyFactor,omitempty"`
}

// Efficiency returns the throughput factor, defaulting to 1 when unset.
func (e Equipment) Efficiency() float64 {
	if e.EfficiencyFactor <= 0 {
		return 1
	}
	return e.EfficiencyFactor
}

// Bin is a warehouse storage location. Coordinates are warehouse-local feet.
type Bin struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Zone  int     `json:"zone"`
	Level int     `json:"level"`
}

// StageSchedule is one (order, stage) assignment. Immutable once emitted.
type StageSchedule struct {
	OrderID     string    `json:"orderId"`
	Stage       StageType `json:"stage"`
	Start       time.Time `json:"start"`
	DurationMin float64   `json:"durationMin"`
	WorkerID    string    `json:"workerId,omitempty"`
	EquipmentID string    `json:"equipmentId,omitempty"`
}

// End returns the completion time of the stage.
func (s StageSchedule) End() time.Time {
	return s.Start.Add(time.Duration(s.DurationMin * float64(time.Minute)))
}

// OrderSchedule is the full six-stage plan for one order.
type OrderSchedule struct {
	OrderID              string          `json:"orderId"`
	Stages               []StageSchedule `json:"stages"`
	CompletionTime       time.Time       `json:"completionTime"`
	OnTime               bool            `json:"onTime"`
	DeadlineViolationMin float64         `json:"deadlineViolationMin"`
	AtRisk               bool            `json:"atRisk,omitempty"`
}

// OptimizationMetrics aggregates one run's schedules. Always derivable from
// the OrderSchedule list, never a source of truth.
type OptimizationMetrics struct {
	TotalOrders        int     `json:"totalOrders"`
	OnTimeOrders       int     `json:"onTimeOrders"`
	OnTimePct          float64 `json:"onTimePct"`
	MakespanMin        float64 `json:"makespanMin"`
	TotalLaborCost     float64 `json:"totalLaborCost"`
	TotalEquipmentCost float64 `json:"totalEquipmentCost"`
	DeadlinePenalty    float64 `json:"deadlinePenalty"`
	SolverStatus       string  `json:"solverStatus"`
	SolveMs            int64   `json:"solveMs,omitempty"`
	ObjectiveValue     float64 `json:"objectiveValue,omitempty"`
}

// ReassignmentEvent records one reactive rebalancing step in the baseline path.
type ReassignmentEvent struct {
	TS          time.Time `json:"ts"`
	WorkerID    string    `json:"workerId"`
	FromStage   StageType `json:"fromStage"`
	ToStage     StageType `json:"toStage"`
	QueueLength int       `json:"queueLength"`
}

// WalkingTimeEntry is one cell of the walking-time matrix export.
type WalkingTimeEntry struct {
	FromBin      string  `json:"fromBin"`
	ToBin        string  `json:"toBin"`
	DistanceFeet float64 `json:"distanceFeet"`
	TimeMin      float64 `json:"timeMin"`
}

// WaveRequest is one scheduling invocation: a snapshot of everything the
// engine needs for a single wave.
type WaveRequest struct {
	TenantID         string             `json:"tenantId,omitempty"`
	Orders           []Order            `json:"orders"`
	Workers          []Worker           `json:"workers"`
	Equipment        []Equipment        `json:"equipment"`
	SKUs             []SKU              `json:"skus,omitempty"`
	Bins             []Bin              `json:"bins,omitempty"`
	ReferenceStart   time.Time          `json:"referenceStart"`
	SlotMinutes      int                `json:"slotMinutes,omitempty"`  // default 15
	HorizonHours     int                `json:"horizonHours,omitempty"` // default 24
	TimeLimitSec     int                `json:"timeLimitSec,omitempty"` // solver budget
	ObjectiveWeights map[string]float64 `json:"objectiveWeights,omitempty"`
}

// WaveResult is what the engine hands back to callers.
type WaveResult struct {
	WaveID        string              `json:"waveId"`
	Status        SolveStatus         `json:"status"`
	Schedules     []OrderSchedule     `json:"schedules"`
	Metrics       OptimizationMetrics `json:"metrics"`
	Reassignments []ReassignmentEvent `json:"reassignments,omitempty"`
}
