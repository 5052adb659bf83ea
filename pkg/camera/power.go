package camera

// PowerLine drives the sensor's power-down pin.
type PowerLine interface {
	PowerDown() error
	PowerUp() error
	Close() error
}

// NoopPowerLine is used when the PWDN pin is not wired.
type NoopPowerLine struct{}

func (NoopPowerLine) PowerDown() error { return nil }
func (NoopPowerLine) PowerUp() error   { return nil }
func (NoopPowerLine) Close() error     { return nil }
