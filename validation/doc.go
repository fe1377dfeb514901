// Package validation checks configuration values before they reach a
// Command.
//
// Struct tag validation uses go-playground/validator and names fields by
// their mapstructure key, so messages match the configuration file:
//
//	type Program struct {
//	    Name string `mapstructure:"name" validate:"required"`
//	}
//	err := validation.Validate(prog)
//
// Checks that need the filesystem use the collecting Validator:
//
//	v := validation.New()
//	v.Required("name", name).Executable("path", path)
//	err := v.Validate()
//
// Both return a CONFIGURATION AppError whose "fields" detail lists every
// failed field.
package validation
