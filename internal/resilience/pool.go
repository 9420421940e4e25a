package resilience

import (
	"github.com/sells-group/leadgen-cli/internal/model"
)

// InstancePool holds the configured instances per role in declaration order
// (first-listed = first-tried) and selects the next eligible one. It performs
// no calls itself; it is consulted before every individual attempt, so a
// just-failed instance is skipped on the very next attempt within the same
// logical request.
type InstancePool struct {
	byRole map[model.Role][]model.ProviderInstance
	health *HealthTracker
}

// NewInstancePool builds a pool over the configured instances. Order within
// each role is preserved as failover priority.
func NewInstancePool(instances []model.ProviderInstance, health *HealthTracker) *InstancePool {
	byRole := make(map[model.Role][]model.ProviderInstance)
	for _, inst := range instances {
		byRole[inst.Role] = append(byRole[inst.Role], inst)
	}
	return &InstancePool{byRole: byRole, health: health}
}

// Next returns the first instance for the role whose health state allows a
// call (healthy or probe-eligible). The second return is false when every
// instance is exhausted or still cooling down.
func (p *InstancePool) Next(role model.Role) (model.ProviderInstance, bool) {
	for _, inst := range p.byRole[role] {
		if p.health.Eligible(inst.ID()) {
			return inst, true
		}
	}
	return model.ProviderInstance{}, false
}

// Instances returns the configured instances for a role in failover order.
func (p *InstancePool) Instances(role model.Role) []model.ProviderInstance {
	return p.byRole[role]
}

// Size returns the number of configured instances for a role.
func (p *InstancePool) Size(role model.Role) int {
	return len(p.byRole[role])
}
