package controller

// HandlePairingStateChange reacts to the accessory being paired or unpaired.
// Losing the last pairing re-emits the pairing instructions.
func (c *Controller) HandlePairingStateChange(paired bool) {
	if paired {
		c.logger.Info("accessory paired")
		return
	}
	c.PrintPairingInstructions()
}

// PrintPairingInstructions logs the setup code and setup URI while the
// accessory is unpaired, or a hint on adding controllers once it is paired.
// This log line is the only place the setup code is shown at runtime.
func (c *Controller) PrintPairingInstructions() {
	p := c.opts.Pairing
	if p == nil {
		c.logger.Warn("accessory is not paired and no pairing information is configured")
		return
	}
	if p.Paired() {
		c.logger.Info("accessory is paired; the admin controller can add others with the setup code",
			"setup_code", p.SetupCode())
		return
	}
	c.logger.Info("accessory is not paired; enter the setup code or scan the setup URI in your controller app",
		"setup_code", p.SetupCode(),
		"setup_uri", p.SetupURI())
}

// HandleIdentify logs an identify request. The inverter has no indicator, so
// there is nothing to drive.
func (c *Controller) HandleIdentify(name string) {
	c.logger.Info("identify requested", "accessory", name)
}
