// internal/mailbox/status.go
package mailbox

import "strings"

// FrameStatus is the 32-bit word returned by GetFrameStatus.
type FrameStatus uint32

const (
	FrameAlgoOK   FrameStatus = 1 << 0
	FrameFeedTru  FrameStatus = 1 << 1
	FrameAPwrDown FrameStatus = 1 << 20
	FrameOVP      FrameStatus = 1 << 21
	FrameUVLO     FrameStatus = 1 << 22
	FrameOCPOTP   FrameStatus = 1 << 24
	FrameClkStop  FrameStatus = 1 << 25
	FrameALC      FrameStatus = 1 << 28
	FrameAudOvf   FrameStatus = 1 << 29
	FrameAudUvf   FrameStatus = 1 << 30
	FrameSnsOvf   FrameStatus = 1 << 31

	audRateShift  = 4
	snsrRateShift = 12
)

var frameFlags = []struct {
	bit  FrameStatus
	name string
}{
	{FrameAlgoOK, "ALGO_OK"},
	{FrameFeedTru, "FEED_TRU"},
	{FrameAPwrDown, "APWR_DWN"},
	{FrameOVP, "OVP"},
	{FrameUVLO, "UVLO"},
	{FrameOCPOTP, "OCP_OTP"},
	{FrameClkStop, "CLK_STOP"},
	{FrameALC, "ALC_STS"},
	{FrameAudOvf, "AUD_OVF"},
	{FrameAudUvf, "AUD_UVF"},
	{FrameSnsOvf, "SNS_OVF"},
}

// AlgoOK reports whether the DSP algorithm is running.
func (s FrameStatus) AlgoOK() bool { return s&FrameAlgoOK != 0 }

// Has reports whether every bit of flag is set.
func (s FrameStatus) Has(flag FrameStatus) bool { return s&flag == flag }

// AudioRate is the AUD_RATE field (bits 4..11).
func (s FrameStatus) AudioRate() uint8 { return uint8(s >> audRateShift) }

// SensorRate is the SNSR_RATE field (bits 12..19).
func (s FrameStatus) SensorRate() uint8 { return uint8(s >> snsrRateShift) }

// Flags returns the names of the set flag bits in bit order.
func (s FrameStatus) Flags() []string {
	var out []string
	for _, f := range frameFlags {
		if s.Has(f.bit) {
			out = append(out, f.name)
		}
	}
	return out
}

func (s FrameStatus) String() string {
	flags := s.Flags()
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, "|")
}
