package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/haven-dev/haven/ha"
	"github.com/haven-dev/haven/internal/generic"
)

// deployOptions are the options fields interpreted by the deployer itself.
// The rest of the blob is only meaningful to the workload.
type deployOptions struct {
	HA bool `json:"ha"`
}

type instance struct {
	id       string
	name     string
	options  json.RawMessage
	ha       bool
	workload Workload
}

// Deployer is the local deployment executor.
type Deployer struct {
	logger   kitlog.Logger
	registry *Registry

	mut       sync.Mutex
	instances map[string]*instance
}

func New(registry *Registry, logger kitlog.Logger) *Deployer {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	return &Deployer{
		logger:    logger,
		registry:  registry,
		instances: make(map[string]*instance),
	}
}

// Deploy builds and starts a workload, returning its deployment ID.
func (d *Deployer) Deploy(ctx context.Context, workload string, options json.RawMessage) (string, error) {
	factory, ok := d.registry.Lookup(workload)
	if !ok {
		return "", fmt.Errorf("unknown workload: %s", workload)
	}

	w, err := factory(options)
	if err != nil {
		return "", fmt.Errorf("create workload %s: %w", workload, err)
	}

	if err := w.Start(ctx); err != nil {
		return "", fmt.Errorf("start workload %s: %w", workload, err)
	}

	var opts deployOptions
	if len(options) > 0 {
		// Unknown or extra fields are fine, the blob belongs to the
		// workload.
		_ = json.Unmarshal(options, &opts)
	}

	id := uuid.NewString()

	d.mut.Lock()
	d.instances[id] = &instance{
		id:       id,
		name:     workload,
		options:  options,
		ha:       opts.HA,
		workload: w,
	}
	d.mut.Unlock()

	level.Info(d.logger).Log("msg", "workload deployed", "workload", workload, "deployment_id", id, "ha", opts.HA)

	return id, nil
}

// Undeploy stops a workload and forgets about it. The instance is only
// removed after a successful stop, so a failed stop can be retried.
func (d *Deployer) Undeploy(ctx context.Context, deploymentID string) error {
	d.mut.Lock()
	inst, ok := d.instances[deploymentID]
	d.mut.Unlock()

	if !ok {
		return fmt.Errorf("unknown deployment: %s", deploymentID)
	}

	if err := inst.workload.Stop(ctx); err != nil {
		return fmt.Errorf("stop workload %s: %w", inst.name, err)
	}

	d.mut.Lock()
	delete(d.instances, deploymentID)
	d.mut.Unlock()

	level.Info(d.logger).Log("msg", "workload undeployed", "workload", inst.name, "deployment_id", deploymentID)

	return nil
}

// Deployments lists the IDs of all active deployments, in lexicographic
// order.
func (d *Deployer) Deployments() []string {
	d.mut.Lock()
	defer d.mut.Unlock()

	ids := make([]string, 0, len(d.instances))
	for id := range d.instances {
		ids = append(ids, id)
	}

	generic.SortSlice(ids, false)

	return ids
}

// Deployment returns information about an active deployment.
func (d *Deployer) Deployment(deploymentID string) (ha.DeploymentInfo, bool) {
	d.mut.Lock()
	defer d.mut.Unlock()

	inst, ok := d.instances[deploymentID]
	if !ok {
		return ha.DeploymentInfo{}, false
	}

	return ha.DeploymentInfo{
		WorkloadName: inst.name,
		Options:      inst.options,
		HA:           inst.ha,
	}, true
}
