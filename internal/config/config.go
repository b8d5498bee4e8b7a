// internal/config/config.go
package config

type Config struct {
	DSP DSPConfig `yaml:"dspmbox"`
}

type DSPConfig struct {
	FirmwareDir string         `yaml:"firmware_dir"`
	Status      *StatusConfig  `yaml:"status"`
	Devices     []DeviceConfig `yaml:"devices"`
}

// ---- STATUS MEMORY ----

// StatusConfig is the Modbus memory receiving device status blocks (optional).
type StatusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	ID        string          `yaml:"id"`
	Chip      string          `yaml:"chip"`
	Transport TransportConfig `yaml:"transport"`
	Cores     []CoreConfig    `yaml:"cores"` // optional; chip defaults when empty
	Mute      *FieldConfig    `yaml:"mute"`
	Bypass    *FieldConfig    `yaml:"bypass"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Poll      PollConfig      `yaml:"poll"`

	// Device status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
	DeviceName string  `yaml:"device_name"`
}

// ---- TRANSPORT ----

const (
	TransportI2C       = "i2c"
	TransportModbusTCP = "modbus-tcp"
	TransportModbusRTU = "modbus-rtu"
	TransportSim       = "sim"
)

type TransportConfig struct {
	Kind string `yaml:"kind"`

	// i2c
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`

	// modbus
	Endpoint  string `yaml:"endpoint"`
	Port      string `yaml:"port"`
	Baud      int    `yaml:"baud"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
	WordOrder string `yaml:"word_order"`
}

// ---- CORES ----

type CoreConfig struct {
	Name     string `yaml:"name"`
	Mailbox  uint16 `yaml:"mailbox"`
	Firmware string `yaml:"firmware"`
}

// FieldConfig is a bit field of a 16-bit chip register.
type FieldConfig struct {
	Reg  uint16 `yaml:"reg"`
	Mask uint16 `yaml:"mask"`
}

// ---- PROTOCOL ----

type ProtocolConfig struct {
	IdleRetries   int  `yaml:"idle_retries"`
	IdleDelayUs   *int `yaml:"idle_delay_us"`
	ChunkSize     int  `yaml:"chunk_size"`
	ChunkAttempts int  `yaml:"chunk_attempts"`
	SettleMs      *int `yaml:"settle_ms"`
}

// ---- POLL ----

// PollConfig controls health monitoring. IntervalMs 0 disables it.
type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}
