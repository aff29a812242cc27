// Package validation validates configuration structs.
//
// Struct tags through go-playground/validator:
//
//	type ClientConfig struct {
//	    BaseURL string `mapstructure:"base_url" validate:"required,url"`
//	}
//	err := validation.Validate(cfg)
//
// Programmatic checks for rules tags cannot express:
//
//	v := validation.New()
//	v.OneOf("mode", cfg.Mode, []string{"none", "pinned"})
//	err := v.Validate()
//
// Both return *Error, whose Fields name each failing key.
package validation
