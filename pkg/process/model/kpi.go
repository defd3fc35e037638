package model

// Kpi measures an activity or a whole process against ordered thresholds.
// The first threshold is the best compliance level.
type Kpi struct {
	Name        string
	Description string
	// Action is the type of the KpiAction evaluating this kpi.
	Action     string
	Thresholds []Threshold
}

type Threshold struct {
	Name  string
	Value string
}

// KpiAction is the expression evaluated once per threshold of a Kpi.
type KpiAction struct {
	Type        string
	Name        string
	Description string
	Script      string
}
