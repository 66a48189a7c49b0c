package conf

import (
	"fmt"
	"strings"
)

// Validate checks invariants that the embedded defaults plus environment
// and parameters overlays must jointly satisfy before the application
// starts any component. Grounded on the teacher's validate.go pattern of
// collecting every violation rather than failing on the first.
func Validate(s *Settings) error {
	var problems []string

	if s.Device.SerialNumber == "" {
		problems = append(problems, "device serial number is required")
	}
	if s.Location.Latitude < -90 || s.Location.Latitude > 90 {
		problems = append(problems, fmt.Sprintf("latitude out of range: %g", s.Location.Latitude))
	}
	if s.Location.Longitude < -180 || s.Location.Longitude > 180 {
		problems = append(problems, fmt.Sprintf("longitude out of range: %g", s.Location.Longitude))
	}
	if s.Acquisition.SampleInterval <= 0 {
		problems = append(problems, "acquisition sample interval must be positive")
	}
	if s.Retention.Days <= 0 {
		problems = append(problems, "retention days must be positive")
	}
	switch s.LocalStore.Driver {
	case "mysql", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unsupported local store driver: %q", s.LocalStore.Driver))
	}
	if s.LocalStore.Driver == "mysql" && s.LocalStore.Host == "" {
		problems = append(problems, "mysql local store requires MYSQL_HOST")
	}
	if s.LocalStore.Driver == "sqlite" && s.LocalStore.Path == "" {
		problems = append(problems, "sqlite local store requires a path")
	}
	if s.Remote.URL == "" {
		problems = append(problems, "remote store URL is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
