package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/haven-dev/haven/api/model"
)

// defaultWaitBudget is how long the deploy endpoint waits for the
// deployment future before reporting the request as queued.
const defaultWaitBudget = 5 * time.Second

type DeploymentsHandler struct {
	manager    Manager
	deployer   Deployer
	waitBudget time.Duration
}

func NewDeploymentsHandler(manager Manager, deployer Deployer) *DeploymentsHandler {
	return &DeploymentsHandler{
		manager:    manager,
		deployer:   deployer,
		waitBudget: defaultWaitBudget,
	}
}

func (api *DeploymentsHandler) Register(r chi.Router) {
	r.Post("/deployments", api.deploy)
	r.Get("/deployments", api.listDeployments)
	r.Delete("/deployments/{id}", api.undeploy)
}

func (api *DeploymentsHandler) deploy(w http.ResponseWriter, r *http.Request) {
	var req model.DeployRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, model.ErrorResponse{Error: "malformed request body"})

		return
	}

	if req.Workload == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, model.ErrorResponse{Error: "workload is required"})

		return
	}

	fut := api.manager.DeployHA(req.Workload, req.Options)

	// A deployment deferred until a quorum appears is not a failure: the
	// request is acknowledged as queued.
	select {
	case <-fut.Done():
		id, err := fut.Result()
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, model.ErrorResponse{Error: err.Error()})

			return
		}

		render.JSON(w, r, model.DeployResponse{
			DeploymentID: id,
			Status:       "deployed",
		})

	case <-time.After(api.waitBudget):
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, model.DeployResponse{Status: "queued"})

	case <-r.Context().Done():
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, model.DeployResponse{Status: "queued"})
	}
}

func (api *DeploymentsHandler) listDeployments(w http.ResponseWriter, r *http.Request) {
	ids := api.deployer.Deployments()
	deployments := make([]model.Deployment, 0, len(ids))

	for _, id := range ids {
		info, ok := api.deployer.Deployment(id)
		if !ok {
			continue
		}

		deployments = append(deployments, model.Deployment{
			DeploymentID: id,
			Workload:     info.WorkloadName,
			HA:           info.HA,
		})
	}

	render.JSON(w, r, model.ListDeploymentsResponse{
		Deployments: deployments,
	})
}

func (api *DeploymentsHandler) undeploy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := api.manager.UndeployHA(r.Context(), id); err != nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, model.ErrorResponse{Error: err.Error()})

		return
	}

	render.NoContent(w, r)
}
