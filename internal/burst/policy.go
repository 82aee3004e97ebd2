package burst

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

// Policy carries the tunable thresholds of the burst heuristic. Defaults are
// embedded; callers may override individual fields before constructing a
// Classifier.
type Policy struct {
	Signals struct {
		TimeRapid        float64 `yaml:"time_rapid"`
		TimeWindow       float64 `yaml:"time_window"`
		FilenameSequence float64 `yaml:"filename_sequence"`
		FilenamePrefix   float64 `yaml:"filename_prefix"`
		SizeNear         float64 `yaml:"size_near"`
		SizeClose        float64 `yaml:"size_close"`
		CameraMatch      float64 `yaml:"camera_match"`
	} `yaml:"signals"`
	Brackets struct {
		RapidSeconds int `yaml:"rapid_seconds"`
		ShortSeconds int `yaml:"short_seconds"`
		MaxSeconds   int `yaml:"max_seconds"`
	} `yaml:"brackets"`
	Floors struct {
		Short    float64 `yaml:"short"`
		Max      float64 `yaml:"max"`
		Possible float64 `yaml:"possible"`
	} `yaml:"floors"`
	Filename struct {
		SequenceGapMax  int `yaml:"sequence_gap_max"`
		PrefixMinLength int `yaml:"prefix_min_length"`
	} `yaml:"filename"`
	SizeRatios struct {
		Near  float64 `yaml:"near"`
		Close float64 `yaml:"close"`
	} `yaml:"size_ratios"`
}

// DefaultPolicy returns the embedded policy defaults.
func DefaultPolicy() Policy {
	var p Policy
	if err := yaml.Unmarshal(policyYAML, &p); err != nil {
		// The file is embedded, so this can only happen on a broken build.
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}
	return p
}
