package device

// StereoLevel is a per-channel 8-bit level pair as used by the volume and
// metering registers. The hardware packs the right channel into the low byte
// and the left channel into the high byte.
type StereoLevel struct {
	Left  uint8
	Right uint8
}

// Pack returns the register encoding of the level pair.
func (l StereoLevel) Pack() uint16 {
	return uint16(l.Left)<<8 | uint16(l.Right)
}

// UnpackStereoLevel decodes a raw register value into named channels.
func UnpackStereoLevel(raw uint16) StereoLevel {
	return StereoLevel{
		Left:  uint8(raw >> 8),
		Right: uint8(raw),
	}
}
