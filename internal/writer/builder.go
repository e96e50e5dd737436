// internal/writer/builder.go
package writer

import (
	"errors"
	"fmt"
	"time"

	cfg "github.com/tamzrod/lxp-replicator/internal/config"
	wingest "github.com/tamzrod/lxp-replicator/internal/writer/ingest"
	wmodbus "github.com/tamzrod/lxp-replicator/internal/writer/modbus"
)

// BuildPlan converts one unit config into a Writer Plan.
// Assumes config has already passed validation and normalization.
func BuildPlan(u cfg.UnitConfig) (Plan, error) {
	if u.ID == "" {
		return Plan{}, errors.New("writer: unit.id required")
	}

	plan := Plan{UnitID: u.ID}

	for _, t := range u.Targets {
		plan.Targets = append(plan.Targets, TargetEndpoint{
			TargetID: t.ID,
			Kind:     t.Kind,
			Endpoint: t.Endpoint,
			UnitID:   t.UnitID,
			Offsets:  t.Offsets,
		})

		if u.Source.StatusSlot != nil && t.StatusUnitID != nil {
			plan.Status = append(plan.Status, StatusPlan{
				Endpoint:   t.Endpoint,
				UnitID:     *t.StatusUnitID,
				BaseSlot:   *u.Source.StatusSlot,
				DeviceName: u.Source.DeviceName,
			})
		}
	}

	return plan, nil
}

// closer is implemented by every endpoint client.
type closer interface {
	endpointClient
	Close() error
}

// BuildEndpointClients creates one client per unique endpoint.
func BuildEndpointClients(u cfg.UnitConfig, timeout time.Duration) (map[string]endpointClient, func() error, error) {
	kinds := map[string]string{}
	for _, t := range u.Targets {
		if prev, ok := kinds[t.Endpoint]; ok && prev != t.Kind {
			return nil, nil, fmt.Errorf("writer: endpoint %s used as both %s and %s", t.Endpoint, prev, t.Kind)
		}
		kinds[t.Endpoint] = t.Kind
	}

	clients := make(map[string]endpointClient)
	var closers []func() error

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	for endpoint, kind := range kinds {
		var (
			c   closer
			err error
		)
		switch kind {
		case cfg.TargetIngest:
			c, err = wingest.NewEndpointClient(wingest.Config{Endpoint: endpoint, Timeout: timeout})
		default:
			c, err = wmodbus.NewEndpointClient(wmodbus.Config{Endpoint: endpoint, Timeout: timeout})
		}
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		clients[endpoint] = c
		closers = append(closers, c.Close)
	}

	return clients, closeAll, nil
}
