package inverter

import "fmt"

// Command is a device write. SetFlags and SetOutputFrequency are the only
// implementations.
type Command interface {
	// Name is a short label used in logs and metric labels.
	Name() string
	// Validate reports ErrInvalidCommand for commands a driver must not send.
	Validate() error
	command()
}

// SetFlags enables and disables flags. The bridge always sends a single flag
// per command so that unrelated settings are never rewritten.
type SetFlags struct {
	Enable  FlagSet
	Disable FlagSet
}

// EnableFlag returns a command enabling only f.
func EnableFlag(f Flag) SetFlags { return SetFlags{Enable: NewFlagSet(f)} }

// DisableFlag returns a command disabling only f.
func DisableFlag(f Flag) SetFlags { return SetFlags{Disable: NewFlagSet(f)} }

// Name implements Command.
func (SetFlags) Name() string { return "set_flags" }

// Validate implements Command.
func (c SetFlags) Validate() error {
	if c.Enable == 0 && c.Disable == 0 {
		return fmt.Errorf("%w: no flags to change", ErrInvalidCommand)
	}
	if c.Enable&c.Disable != 0 {
		return fmt.Errorf("%w: flags both enabled and disabled: %s", ErrInvalidCommand, c.Enable&c.Disable)
	}
	return nil
}

// String describes the change, e.g. "enable [buzzer]".
func (c SetFlags) String() string {
	switch {
	case c.Disable == 0:
		return "enable " + c.Enable.String()
	case c.Enable == 0:
		return "disable " + c.Disable.String()
	default:
		return "enable " + c.Enable.String() + " disable " + c.Disable.String()
	}
}

// SetOutputFrequency changes the AC output frequency.
type SetOutputFrequency struct {
	Hertz int
}

// Name implements Command.
func (SetOutputFrequency) Name() string { return "set_output_frequency" }

// Validate implements Command.
func (c SetOutputFrequency) Validate() error {
	if !ValidOutputFrequency(c.Hertz) {
		return fmt.Errorf("%w: unsupported output frequency %d Hz", ErrInvalidCommand, c.Hertz)
	}
	return nil
}

// String describes the change.
func (c SetOutputFrequency) String() string {
	return fmt.Sprintf("output frequency %d Hz", c.Hertz)
}

func (SetFlags) command()           {}
func (SetOutputFrequency) command() {}
