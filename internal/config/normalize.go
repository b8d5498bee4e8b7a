// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultFirmwareDir   = "/lib/firmware"
	DefaultTimeoutMs     = 1000
	DefaultBaud          = 115200
	DefaultWordOrder     = "low_first"
	DefaultIdleRetries   = 10
	DefaultIdleDelayUs   = 500
	DefaultChunkSize     = 96
	DefaultChunkAttempts = 3
	DefaultSettleMs      = 100
	DeviceNameMaxChars   = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.DSP.FirmwareDir == "" {
		cfg.DSP.FirmwareDir = DefaultFirmwareDir
	}
	if s := cfg.DSP.Status; s != nil && s.TimeoutMs == 0 {
		s.TimeoutMs = DefaultTimeoutMs
	}

	for i := range cfg.DSP.Devices {
		d := &cfg.DSP.Devices[i]

		t := &d.Transport
		if t.TimeoutMs == 0 {
			t.TimeoutMs = DefaultTimeoutMs
		}
		if t.Kind == TransportModbusRTU && t.Baud == 0 {
			t.Baud = DefaultBaud
		}
		if t.WordOrder == "" {
			t.WordOrder = DefaultWordOrder
		}

		p := &d.Protocol
		if p.IdleRetries == 0 {
			p.IdleRetries = DefaultIdleRetries
		}
		if p.IdleDelayUs == nil {
			p.IdleDelayUs = intPtr(DefaultIdleDelayUs)
		}
		if p.ChunkSize == 0 {
			p.ChunkSize = DefaultChunkSize
		}
		if p.ChunkAttempts == 0 {
			p.ChunkAttempts = DefaultChunkAttempts
		}
		if p.SettleMs == nil {
			p.SettleMs = intPtr(DefaultSettleMs)
		}

		// device_name: ASCII already validated; truncate
		if d.DeviceName == "" {
			d.DeviceName = d.ID
		}
		if len(d.DeviceName) > DeviceNameMaxChars {
			d.DeviceName = d.DeviceName[:DeviceNameMaxChars]
		}
	}
}

func intPtr(v int) *int { return &v }
