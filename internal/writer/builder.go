// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/dsp-mailbox/internal/config"
	wmodbus "github.com/tamzrod/dsp-mailbox/internal/writer/modbus"
)

// BuildStatusPlan places one device in status memory.
// Status is opt-in: ok is false when the device has no status_slot
// or no status memory is configured.
func BuildStatusPlan(d cfg.DeviceConfig, st *cfg.StatusConfig) (plan *StatusPlan, ok bool) {
	if st == nil || d.StatusSlot == nil {
		return nil, false
	}
	name := d.DeviceName
	if name == "" {
		name = d.ID
	}
	return &StatusPlan{
		DeviceID:   d.ID,
		Endpoint:   st.Endpoint,
		UnitID:     st.UnitID,
		BaseSlot:   *d.StatusSlot,
		DeviceName: name,
	}, true
}

// BuildEndpointClient connects to the status memory endpoint.
func BuildEndpointClient(st *cfg.StatusConfig) (*wmodbus.EndpointClient, error) {
	if st == nil {
		return nil, errors.New("writer: status memory not configured")
	}
	return wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: st.Endpoint,
		Timeout:  time.Duration(st.TimeoutMs) * time.Millisecond,
	})
}
