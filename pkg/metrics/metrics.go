package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveCallSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "call_sessions_active",
		Help: "Number of live call sessions on this instance",
	})

	CallFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_failures_total",
		Help: "Call session failures by classification",
	}, []string{"reason"})

	CallsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calls_ended_total",
		Help: "Ended call sessions by termination reason",
	}, []string{"reason"})

	CallSecondsBilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_seconds_billed_total",
		Help: "Total connected seconds finalized for billing",
	})

	WalletDebitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_debit_errors_total",
		Help: "Failed wallet debits during call finalization",
	})
)
