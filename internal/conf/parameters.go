package conf

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Parameters mirrors the recognized keys of parameters.json, grounded on
// original_source/src/utils/json_config_loader.py's LoadConfiguration.
type Parameters struct {
	AcousticSequences []string `json:"AcousticSequences"`
	SpectrumSequences []string `json:"SpectrumSequences"` // reserved, not processed yet
	AudioSequences    []string `json:"AudioSequences"`
}

// LoadParameters reads and parses the parameters.json file. A missing file
// is not an error — it is treated as an empty parameter set, matching the
// original's acquisition_manager.start defaulting behavior when no
// acoustic sequences are configured.
func LoadParameters(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Parameters{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var params Parameters
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &params, nil
}

// ExtractWeighting determines which single weighting class (A, C or Z) the
// configured AcousticSequences belong to, rejecting a mix, exactly as
// extract_weighting does in the original. An empty AcousticSequences list
// is not an error here; the acquisition pipeline simply has nothing to
// sample.
func (p *Parameters) ExtractWeighting() (string, error) {
	if len(p.AcousticSequences) == 0 {
		return "", nil
	}

	classesSeen := map[string]bool{}
	for _, name := range p.AcousticSequences {
		switch {
		case AWeightedParams[name]:
			classesSeen[AWeighted] = true
		case CWeightedParams[name]:
			classesSeen[CWeighted] = true
		case ZWeightedParams[name]:
			classesSeen[ZWeighted] = true
		default:
			// Unsupported parameter name: warn and skip, matching the
			// original's "unsupported param" log path rather than failing.
			slog.Warn("unsupported AcousticSequences parameter, skipping", "param", name)
		}
	}

	switch len(classesSeen) {
	case 0:
		return "", fmt.Errorf("AcousticSequences contains no recognized A/C/Z weighted parameters")
	case 1:
		for class := range classesSeen {
			return class, nil
		}
	}
	return "", fmt.Errorf("AcousticSequences mixes more than one weighting class")
}
