// internal/writer/types.go
package writer

// StatusPlan is where one device's status block lives in status memory.
type StatusPlan struct {
	DeviceID   string
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// endpointClient is the register write surface of a status endpoint.
// *modbus.EndpointClient satisfies it.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}
