package model

import "encoding/json"

type DeployRequest struct {
	Workload string          `json:"workload"`
	Options  json.RawMessage `json:"options,omitempty"`
}

type DeployResponse struct {
	DeploymentID string `json:"deployment_id,omitempty"`
	Status       string `json:"status"`
}

type Deployment struct {
	DeploymentID string `json:"deployment_id"`
	Workload     string `json:"workload"`
	HA           bool   `json:"ha"`
}

type ListDeploymentsResponse struct {
	Deployments []Deployment `json:"deployments"`
}

type HADeployment struct {
	DeploymentID string `json:"deployment_id"`
	Workload     string `json:"workload"`
}

type StatusResponse struct {
	NodeID             string         `json:"node_id"`
	Group              string         `json:"group"`
	QuorumAttained     bool           `json:"quorum_attained"`
	Members            []string       `json:"members"`
	PendingDeployments int            `json:"pending_deployments"`
	HADeployments      []HADeployment `json:"ha_deployments"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
