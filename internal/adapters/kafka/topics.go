package kafka

// Topic definitions for Kafka event streaming
const (
	// Inbound signals from the webhook/ingress layer
	TopicSignalsInbound = "signals.inbound"

	// Pipeline stage transitions, consumed by external dashboards
	TopicGateDecisions     = "pipeline.gate_decisions"
	TopicRiskDecisions     = "pipeline.risk_decisions"
	TopicDispatchResults   = "pipeline.dispatch_results"
	TopicLedgerTransitions = "pipeline.ledger_transitions"
)
