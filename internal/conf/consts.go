// conf/consts.go hard coded constants
package conf

const (
	DefaultSampleRate = 48000 // default PCM sample rate for AudioRecorder capture
	DefaultBitDepth   = 16    // default bit depth for AudioRecorder capture
	DefaultNumChannels = 1    // mono capture

	ParametersFileName = "parameters.json"

	AWeighted = "A"
	CWeighted = "C"
	ZWeighted = "Z"
)

// AWeightedParams, CWeightedParams and ZWeightedParams enumerate the
// recognized acoustic sequence names per weighting class.
var (
	AWeightedParams = map[string]bool{"LAeq": true, "LAF": true, "LAFmin": true, "LAFmax": true}
	CWeightedParams = map[string]bool{"LCeq": true, "LCF": true, "LCFmin": true, "LCFmax": true}
	ZWeightedParams = map[string]bool{"LZeq": true, "LZF": true, "LZFmin": true, "LZFmax": true}
)
