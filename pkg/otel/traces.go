package otel

const (
	Prefix                        = "process-"
	AttributeProcessInstanceKey   = Prefix + "instance-key"
	AttributeProcessDefinitionId  = Prefix + "definition-id"
	AttributeActivityId           = Prefix + "activity-id"
	AttributeActivityName         = Prefix + "activity-name"
	AttributeActivityType         = Prefix + "activity-type"
	AttributeArtifactDefinitionId = Prefix + "artifact-definition-id"
	AttributeNextActivityId       = Prefix + "next-activity-id"
	AttributeKpiName              = Prefix + "kpi-name"

	AttributeCorrelationId = "correlation-id"
)
