package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultPort is what the add-database form pre-fills.
const DefaultPort = 27017

// DatabaseConfig is a user-entered connection descriptor. The JSON shape is
// shared by the mirror and the /db-agent/run request body.
type DatabaseConfig struct {
	ID       int64  `json:"id"`
	Type     string `json:"type" validate:"required"`
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	User     string `json:"user,omitempty" validate:"required"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError lists the fields a config is missing or has out of range.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid database config: %s", strings.Join(e.Fields, ", "))
}

// Validate rejects configs missing type, host or user. Whitespace-only
// values count as missing.
func (c DatabaseConfig) Validate() error {
	trimmed := c
	trimmed.Type = strings.TrimSpace(c.Type)
	trimmed.Host = strings.TrimSpace(c.Host)
	trimmed.User = strings.TrimSpace(c.User)

	err := validate.Struct(trimmed)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			fields = append(fields, name+" is required")
			continue
		}
		fields = append(fields, fmt.Sprintf("%s fails %s", name, fe.Tag()))
	}
	return &ValidationError{Fields: fields}
}

// Engine returns the normalized engine family of the config's type.
func (c DatabaseConfig) Engine() string {
	return NormalizeEngine(c.Type)
}

// Masked returns a copy safe for display.
func (c DatabaseConfig) Masked() DatabaseConfig {
	out := c
	if out.Password != "" {
		out.Password = "****"
	}
	return out
}

// Address renders host[:port].
func (c DatabaseConfig) Address() string {
	if c.Port <= 0 {
		return c.Host
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c DatabaseConfig) String() string {
	s := fmt.Sprintf("#%d %s %s", c.ID, c.Type, c.Address())
	if c.Database != "" {
		s += "/" + c.Database
	}
	return s
}
