package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/haven-dev/haven/api/model"
)

type StatusHandler struct {
	manager Manager
	cluster Cluster
}

func NewStatusHandler(manager Manager, cluster Cluster) *StatusHandler {
	return &StatusHandler{
		manager: manager,
		cluster: cluster,
	}
}

func (api *StatusHandler) Register(r chi.Router) {
	r.Get("/status", api.getStatus)
}

func (api *StatusHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	snap := api.manager.Snapshot()

	haDeployments := make([]model.HADeployment, 0, len(snap.Deployments))
	for _, rec := range snap.Deployments {
		haDeployments = append(haDeployments, model.HADeployment{
			DeploymentID: rec.DeploymentID,
			Workload:     rec.WorkloadName,
		})
	}

	render.JSON(w, r, model.StatusResponse{
		NodeID:             api.cluster.SelfID(),
		Group:              api.manager.Group(),
		QuorumAttained:     api.manager.QuorumAttained(),
		Members:            api.cluster.Nodes(),
		PendingDeployments: api.manager.PendingCount(),
		HADeployments:      haDeployments,
	})
}
