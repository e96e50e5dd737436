// internal/writer/types.go
package writer

import (
	cfg "github.com/tamzrod/lxp-replicator/internal/config"
	"github.com/tamzrod/lxp-replicator/internal/poller"
)

// TargetEndpoint is one destination register memory.
type TargetEndpoint struct {
	TargetID uint32
	Kind     string // config.TargetModbus or config.TargetIngest
	Endpoint string
	UnitID   uint8
	Offsets  cfg.OffsetsConfig
}

// StatusPlan places the device status block in one status memory.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// Plan is the fully-built write plan for one unit.
type Plan struct {
	UnitID  string
	Targets []TargetEndpoint
	Status  []StatusPlan // empty when the unit did not opt in
}

// Writer writes poll snapshots into targets.
type Writer interface {
	Write(res poller.PollResult) error
}
