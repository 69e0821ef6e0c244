package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ignite/event-crm/internal/domain"
)

var (
	pushItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventcrm",
		Subsystem: "pipeline",
		Name:      "push_items_total",
		Help:      "Contacts processed by bulk pushes, by outcome.",
	}, []string{"outcome"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventcrm",
		Subsystem: "pipeline",
		Name:      "stage_transitions_total",
		Help:      "Stage changes applied to pipeline records, by target stage. Custom stages count as other.",
	}, []string{"stage"})

	graduationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventcrm",
		Subsystem: "pipeline",
		Name:      "graduations_total",
		Help:      "Graduation attempts, by result.",
	}, []string{"result"})
)

// stageLabel keeps the stage label set bounded: custom per-event stage names
// are reported as "other".
func stageLabel(st domain.Stage) string {
	switch st {
	case domain.StageMember, domain.StageRSVPed, domain.StagePaid, domain.StageAttended:
		return string(st)
	}
	return "other"
}
