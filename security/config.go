package security

import (
	"fmt"
)

// Policy modes accepted by PolicyConfig.
const (
	ModeNone   = "none"
	ModePinned = "pinned"
)

// PolicyConfig is the file/env form of a Policy.
type PolicyConfig struct {
	// Mode is "none" (default) or "pinned".
	Mode string `yaml:"mode" mapstructure:"mode"`

	// Certificates lists certificate files or directories to pin.
	Certificates []string `yaml:"certificates" mapstructure:"certificates"`

	// ValidateChain also validates the presented chain and host name.
	// Defaults to true.
	ValidateChain *bool `yaml:"validate_chain" mapstructure:"validate_chain"`
}

// ApplyDefaults fills zero values.
func (c *PolicyConfig) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeNone
	}
	if c.ValidateChain == nil {
		v := true
		c.ValidateChain = &v
	}
}

// Validate checks the mode and its requirements.
func (c *PolicyConfig) Validate() error {
	switch c.Mode {
	case "", ModeNone:
		return nil
	case ModePinned:
		if len(c.Certificates) == 0 {
			return fmt.Errorf("security: pinned mode requires certificates")
		}
		return nil
	default:
		return fmt.Errorf("security: mode must be %q or %q (got: %s)", ModeNone, ModePinned, c.Mode)
	}
}

// Build loads the configured certificates and returns the policy.
func (c PolicyConfig) Build() (Policy, error) {
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Mode == ModeNone {
		return None(), nil
	}
	certs, err := LoadBundles(c.Certificates...)
	if err != nil {
		return nil, err
	}
	var opts []PinOption
	if !*c.ValidateChain {
		opts = append(opts, WithoutChainValidation())
	}
	return PinCertificates(certs, opts...)
}
