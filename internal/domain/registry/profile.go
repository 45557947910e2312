// Package registry provides the DomainProfile entity and the domain registry.
package registry

import (
	"github.com/aiengine/aiengine-go/internal/shared"
)

// FieldSpec declares one payload field of a domain's input schema.
type FieldSpec struct {
	Name     string           `json:"name" yaml:"name"`
	Kind     shared.FieldKind `json:"kind" yaml:"kind"`
	Required bool             `json:"required" yaml:"required"`

	// Window is the number of sequence positions the field occupies after
	// encoding. Numeric series are summarized into Window positions; text
	// and categorical fields are tokenized and truncated/padded to Window.
	Window int `json:"window" yaml:"window"`
}

// DomainProfile binds a (domain, task type) pair to its input schema,
// output head and explanation strategy. Profiles are static configuration:
// loaded once at process start and read-only thereafter.
type DomainProfile struct {
	Domain     shared.DomainType `json:"domain" yaml:"domain"`
	TaskType   shared.TaskType   `json:"taskType" yaml:"task_type"`
	Schema     []FieldSpec       `json:"schema" yaml:"schema"`
	HeadID     string            `json:"headId" yaml:"head"`
	StrategyID string            `json:"strategyId" yaml:"strategy"`

	// Version increments whenever the schema or encoding policy changes,
	// so features encoded under an older profile are detectable downstream.
	Version int `json:"version" yaml:"version"`
}

// SeqLen returns the total encoded sequence length declared by the schema.
func (p *DomainProfile) SeqLen() int {
	total := 0
	for _, field := range p.Schema {
		total += field.Window
	}
	return total
}

// Field returns the schema entry for name, nil if the schema does not
// declare it.
func (p *DomainProfile) Field(name string) *FieldSpec {
	for i := range p.Schema {
		if p.Schema[i].Name == name {
			return &p.Schema[i]
		}
	}
	return nil
}
