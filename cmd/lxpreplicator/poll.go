// cmd/lxpreplicator/poll.go
package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tamzrod/lxp-replicator/internal/config"
	"github.com/tamzrod/lxp-replicator/internal/dongle"
	"github.com/tamzrod/lxp-replicator/internal/lxp"
	"github.com/tamzrod/lxp-replicator/internal/poller"
)

type pollFlags struct {
	unit string
}

// pollDump is the YAML shape printed by the poll command.
type pollDump struct {
	Unit      string                       `yaml:"unit"`
	Model     string                       `yaml:"model,omitempty"`
	Stale     bool                         `yaml:"stale"`
	Recovery  dongle.RecoveryStats         `yaml:"recovery"`
	Times     map[uint16]string            `yaml:"times,omitempty"`
	Input     map[uint16]uint16            `yaml:"input"`
	Hold      map[uint16]uint16            `yaml:"hold"`
	Batteries map[string]lxp.BatteryRecord `yaml:"batteries,omitempty"`
}

func newPollCmd(root *rootFlags) *cobra.Command {
	flags := &pollFlags{}

	cmd := &cobra.Command{
		Use:     "poll",
		Short:   "Read one unit once and print its registers as YAML",
		Example: `  lxpreplicator poll --config config.yaml --unit garage`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(root)
			if err != nil {
				return err
			}
			u, err := pickUnit(cfg, flags.unit)
			if err != nil {
				return err
			}

			client, err := dongle.New(poller.ClientConfig(u), log)
			if err != nil {
				return err
			}
			snap, err := client.FetchData(cmd.Context())
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(dumpSnapshot(u.ID, snap, client.RecoveryStats()))
		},
	}

	cmd.Flags().StringVar(&flags.unit, "unit", "", "Unit id (defaults to the only configured unit)")
	return cmd
}

func dumpSnapshot(unit string, snap dongle.Snapshot, rs dongle.RecoveryStats) pollDump {
	d := pollDump{
		Unit:      unit,
		Model:     lxp.DecodeModel(snap.Hold),
		Stale:     snap.Stale,
		Recovery:  rs,
		Input:     snap.Input,
		Hold:      snap.Hold,
		Batteries: snap.Battery,
	}

	regs := make([]uint16, 0, len(snap.Hold))
	for reg := range snap.Hold {
		if lxp.IsTimeRegister(lxp.BankHold, reg) {
			regs = append(regs, reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })
	for _, reg := range regs {
		if d.Times == nil {
			d.Times = make(map[uint16]string)
		}
		h, m := lxp.UnpackTime(snap.Hold[reg])
		d.Times[reg] = fmt.Sprintf("%02d:%02d", h, m)
	}
	return d
}

// pickUnit selects a unit by id; an empty id is allowed when only one unit exists.
func pickUnit(cfg *config.Config, id string) (config.UnitConfig, error) {
	if id == "" {
		if len(cfg.Units) != 1 {
			return config.UnitConfig{}, fmt.Errorf("--unit is required when %d units are configured", len(cfg.Units))
		}
		return cfg.Units[0], nil
	}
	u, ok := cfg.Unit(id)
	if !ok {
		return config.UnitConfig{}, fmt.Errorf("unknown unit %q", id)
	}
	return u, nil
}
