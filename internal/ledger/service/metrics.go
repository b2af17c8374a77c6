package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts ledger operations by operation and outcome.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartbanker_ledger_operations_total",
		Help: "Total ledger operations, labeled by operation and outcome",
	}, []string{"operation", "outcome"})

	// amountTotal sums committed amounts by operation.
	amountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartbanker_ledger_amount_total",
		Help: "Sum of committed deposit and withdrawal amounts",
	}, []string{"operation"})
)

const (
	outcomeCommitted    = "committed"
	outcomeInvalid      = "invalid_amount"
	outcomeInsufficient = "insufficient_funds"
	outcomeDenied       = "policy_denied"
	outcomeNotFound     = "not_found"
	outcomeError        = "error"
)
