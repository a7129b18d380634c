// Package nodes implements the executor factories for the four node kinds a
// workflow graph can contain: service, decision, form, and subworkflow.
package nodes

import "encoding/json"

// ServiceConfig is the data payload of a service node.
type ServiceConfig struct {
	Label    string          `json:"label"`
	URL      string          `json:"url"`
	Method   string          `json:"method"`
	Request  json.RawMessage `json:"request"`
	Mappings []Mapping       `json:"mappings"`
}

// Mapping copies one value from state into the rendered request payload,
// with an optional string transform applied first.
type Mapping struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Transform string `json:"transform"`
}

// DecisionConfig is the data payload of a decision node.
type DecisionConfig struct {
	Label string `json:"label"`
	Rules []Rule `json:"rules"`
	Script string `json:"script"`
}

// Rule is one condition/action pair evaluated in order by a decision node.
type Rule struct {
	Condition string                 `json:"condition"`
	Action    map[string]interface{} `json:"action"`
}

// FormConfig is the data payload of a form node.
type FormConfig struct {
	Label  string                 `json:"label"`
	Schema map[string]interface{} `json:"schema"`
}

// SubworkflowConfig is the data payload of a subworkflow node.
type SubworkflowConfig struct {
	Label    string                 `json:"label"`
	Graph    map[string]interface{} `json:"graph"`
	GraphRef string                 `json:"graph_ref"`
}
