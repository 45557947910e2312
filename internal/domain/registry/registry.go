package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aiengine/aiengine-go/internal/shared"
)

type profileKey struct {
	domain   shared.DomainType
	taskType shared.TaskType
}

// Registry manages all domain profiles. It is populated during
// construction, validated once, and read-only thereafter, so it is safe
// for concurrent use without locking.
type Registry struct {
	profiles map[profileKey]*DomainProfile
	domains  map[shared.DomainType][]shared.TaskType
}

// New creates an empty Registry. Callers register profiles and then call
// Validate before serving tasks.
func New() *Registry {
	return &Registry{
		profiles: make(map[profileKey]*DomainProfile),
		domains:  make(map[shared.DomainType][]shared.TaskType),
	}
}

// Register adds a profile. Registering a second profile for the same
// (domain, task type) pair is a configuration error: every routable pair
// must have exactly one profile.
func (r *Registry) Register(profile *DomainProfile) error {
	if profile.Domain == "" || profile.TaskType == "" {
		return shared.NewConfigurationError("profile requires both domain and task type", nil)
	}
	if len(profile.Schema) == 0 {
		return shared.NewConfigurationError(
			fmt.Sprintf("profile %s/%s declares an empty schema", profile.Domain, profile.TaskType), nil)
	}
	key := profileKey{domain: profile.Domain, taskType: profile.TaskType}
	if _, exists := r.profiles[key]; exists {
		return shared.NewConfigurationError(
			fmt.Sprintf("duplicate profile for %s/%s", profile.Domain, profile.TaskType), nil)
	}

	r.profiles[key] = profile
	r.domains[profile.Domain] = append(r.domains[profile.Domain], profile.TaskType)
	return nil
}

// Resolve returns the profile for a (domain, task type) pair. It fails
// with UnknownDomainError when the domain has no profiles at all, and with
// UnknownTaskTypeError when the domain exists but the task type does not.
func (r *Registry) Resolve(domain shared.DomainType, taskType shared.TaskType) (*DomainProfile, error) {
	if _, ok := r.domains[domain]; !ok {
		return nil, shared.NewUnknownDomainError(domain)
	}
	profile, ok := r.profiles[profileKey{domain: domain, taskType: taskType}]
	if !ok {
		return nil, shared.NewUnknownTaskTypeError(domain, taskType)
	}
	return profile, nil
}

// Validate checks every declared head and strategy identifier against the
// sets of registered implementations. Any dangling reference fails fast
// with ConfigurationError; a registry that passes validation can route
// every declared pair.
func (r *Registry) Validate(headIDs, strategyIDs map[string]bool) error {
	for key, profile := range r.profiles {
		if !headIDs[profile.HeadID] {
			return shared.NewConfigurationError(
				fmt.Sprintf("profile %s/%s references unregistered head %q", key.domain, key.taskType, profile.HeadID),
				map[string]any{"head": profile.HeadID})
		}
		if !strategyIDs[profile.StrategyID] {
			return shared.NewConfigurationError(
				fmt.Sprintf("profile %s/%s references unregistered explanation strategy %q", key.domain, key.taskType, profile.StrategyID),
				map[string]any{"strategy": profile.StrategyID})
		}
	}
	return nil
}

// Domains returns the declared domains in stable order.
func (r *Registry) Domains() []shared.DomainType {
	domains := make([]shared.DomainType, 0, len(r.domains))
	for domain := range r.domains {
		domains = append(domains, domain)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
	return domains
}

// TaskTypes returns the declared task types for a domain in stable order.
func (r *Registry) TaskTypes(domain shared.DomainType) []shared.TaskType {
	taskTypes := append([]shared.TaskType(nil), r.domains[domain]...)
	sort.Slice(taskTypes, func(i, j int) bool { return taskTypes[i] < taskTypes[j] })
	return taskTypes
}

// Profiles returns all registered profiles in stable (domain, task type)
// order.
func (r *Registry) Profiles() []*DomainProfile {
	profiles := make([]*DomainProfile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Domain != profiles[j].Domain {
			return profiles[i].Domain < profiles[j].Domain
		}
		return profiles[i].TaskType < profiles[j].TaskType
	})
	return profiles
}

// registryFile is the YAML document shape for profile configuration.
type registryFile struct {
	Profiles []DomainProfile `yaml:"profiles"`
}

// LoadFromYAML reads domain profiles from a YAML configuration file.
func LoadFromYAML(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.NewConfigurationError(
			fmt.Sprintf("failed to read registry config %s: %v", path, err), nil)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, shared.NewConfigurationError(
			fmt.Sprintf("failed to parse registry config %s: %v", path, err), nil)
	}

	r := New()
	for i := range file.Profiles {
		profile := file.Profiles[i]
		if profile.Version == 0 {
			profile.Version = 1
		}
		if err := r.Register(&profile); err != nil {
			return nil, err
		}
	}
	return r, nil
}
