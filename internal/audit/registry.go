package audit

import (
	"fmt"

	"github.com/KatnessChen/MaraMap-Backend/internal/config"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

const (
	TypeNoop   = "noop"
	TypeMemory = "memory"
	TypeFile   = "file"
)

// New builds the auditor selected by conf.
func New(conf config.AuditConfig) (core.Auditor, error) {
	if !conf.Enabled {
		return NewNoopAuditor(), nil
	}
	switch conf.Type {
	case TypeNoop:
		return NewNoopAuditor(), nil
	case TypeMemory, "":
		return NewInMemoryAuditor(conf.Capacity), nil
	case TypeFile:
		if conf.Path == "" {
			return nil, fmt.Errorf("audit type 'file' requires a path")
		}
		return NewFileAuditor(conf.Path)
	default:
		return nil, fmt.Errorf("unknown audit type '%s'", conf.Type)
	}
}
