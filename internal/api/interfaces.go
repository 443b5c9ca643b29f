// Package api holds the thin REST data-access layer. The dashboard's view
// code depends on these interfaces only; the concrete client routes every
// call through the request gateway.
package api

import "context"

// Pod is a workload summary row.
type Pod struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Phase     string `json:"phase"`
	NodeName  string `json:"node_name"`
	Restarts  int    `json:"restarts"`
}

// Node is a cluster node summary row.
type Node struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

// Alert is one observability alert.
type Alert struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
	Active   bool   `json:"active"`
}

// TuningParameter is one workload tuning knob.
type TuningParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PodService abstracts pod CRUD for the workload console.
type PodService interface {
	ListPods(ctx context.Context, namespace string) ([]Pod, error)
	DeletePod(ctx context.Context, namespace, name string) error
}

// NodeService abstracts node reads for the cluster dashboard.
type NodeService interface {
	ListNodes(ctx context.Context) ([]Node, error)
}

// AlertService abstracts alert reads for the observability panels.
type AlertService interface {
	ListAlerts(ctx context.Context) ([]Alert, error)
	SilenceAlert(ctx context.Context, id string) error
}

// TuningService abstracts tuning parameter CRUD.
type TuningService interface {
	GetTuningParameters(ctx context.Context, workload string) ([]TuningParameter, error)
	SetTuningParameter(ctx context.Context, workload string, param TuningParameter) error
}
