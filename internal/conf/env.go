// env.go - environment variable configuration and validation for the logger
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// envBinding holds metadata for a required environment variable binding.
type envBinding struct {
	EnvVar   string
	Required bool
	Apply    func(settings *Settings, value string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"MONGO_URL", true, func(s *Settings, v string) error { s.Remote.URL = v; return nil }},
		{"MONGO_USERNAME", true, func(s *Settings, v string) error { s.Remote.Username = v; return nil }},
		{"MONGO_PASSWORD", true, func(s *Settings, v string) error { s.Remote.Password = v; return nil }},
		{"DEVICE_STATUS_DB", true, func(s *Settings, v string) error { s.Remote.DeviceStatusDB = v; return nil }},
		{"MYSQL_USER", true, func(s *Settings, v string) error { s.LocalStore.Username = v; return nil }},
		{"MYSQL_PASSWORD", true, func(s *Settings, v string) error { s.LocalStore.Password = v; return nil }},
		{"MYSQL_HOST", true, func(s *Settings, v string) error { s.LocalStore.Host = v; return nil }},
		{"MYSQL_PORT", true, func(s *Settings, v string) error { s.LocalStore.Port = v; return nil }},
		{"SERIAL_NUMBER", true, func(s *Settings, v string) error { s.Device.SerialNumber = v; return nil }},
		{"RETENTION_DAYS", true, func(s *Settings, v string) error {
			days, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid RETENTION_DAYS %q: %w", v, err)
			}
			s.Retention.Days = days
			return nil
		}},
	}
}

// applyEnvOverlay overlays required environment variables onto settings,
// matching the original's env_config_loader.Config.validate_or_exit: a
// missing required variable is a hard startup failure, collected so the
// operator sees every missing key at once instead of one at a time.
func applyEnvOverlay(settings *Settings) error {
	var missing []string
	for _, b := range getEnvBindings() {
		value, present := os.LookupEnv(b.EnvVar)
		if !present || value == "" {
			if b.Required {
				missing = append(missing, b.EnvVar)
			}
			continue
		}
		if err := b.Apply(settings, value); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
