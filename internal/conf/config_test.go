package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractWeighting(t *testing.T) {
	tests := []struct {
		name    string
		params  Parameters
		want    string
		wantErr bool
	}{
		{"A weighted", Parameters{AcousticSequences: []string{"LAeq", "LAF"}}, "A", false},
		{"C weighted", Parameters{AcousticSequences: []string{"LCeq", "LCFmax"}}, "C", false},
		{"empty is not an error", Parameters{}, "", false},
		{"mixed weightings rejected", Parameters{AcousticSequences: []string{"LAeq", "LCeq"}}, "", true},
		{"unrecognized only", Parameters{AcousticSequences: []string{"bogus"}}, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.params.ExtractWeighting()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateRejectsMissingSerial(t *testing.T) {
	s := &Settings{}
	s.LocalStore.Driver = "sqlite"
	s.LocalStore.Path = "/tmp/x.db"
	s.Acquisition.SampleInterval = 0.125
	s.Retention.Days = 14
	s.Remote.URL = "mongodb://localhost"

	err := Validate(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serial number")
}

func TestValidateAcceptsCompleteSettings(t *testing.T) {
	s := &Settings{}
	s.Device.SerialNumber = "SN-001"
	s.LocalStore.Driver = "sqlite"
	s.LocalStore.Path = "/tmp/x.db"
	s.Acquisition.SampleInterval = 0.125
	s.Retention.Days = 14
	s.Remote.URL = "mongodb://localhost"

	assert.NoError(t, Validate(s))
}
