package segment

import (
	"fmt"
	"time"
)

// Config holds voice activity detection parameters.
type Config struct {
	// AmplitudeThreshold is the peak absolute sample value that counts as
	// speech. Frames whose peak stays below this are treated as silence.
	AmplitudeThreshold int `yaml:"amplitude_threshold" json:"amplitude_threshold"`

	// MaxUtterance is the hard cap on a single utterance. Capture ends and
	// the buffer is emitted once this much audio has accumulated, even if
	// the speaker has not paused.
	MaxUtterance time.Duration `yaml:"max_utterance" json:"max_utterance"`

	// TrailingSilence is how long the input must stay below the threshold
	// before the utterance is considered finished.
	TrailingSilence time.Duration `yaml:"trailing_silence" json:"trailing_silence"`

	// MinUtterance is the shortest buffer worth emitting. Anything shorter
	// is discarded as a noise burst.
	MinUtterance time.Duration `yaml:"min_utterance" json:"min_utterance"`
}

// DefaultConfig returns segmenter settings tuned for close-talking speech
// at 16kHz.
func DefaultConfig() Config {
	return Config{
		AmplitudeThreshold: 1000,
		MaxUtterance:       30 * time.Second,
		TrailingSilence:    2 * time.Second,
		MinUtterance:       500 * time.Millisecond,
	}
}

// Validate checks configuration values.
func (c Config) Validate() error {
	if c.AmplitudeThreshold <= 0 {
		return fmt.Errorf("amplitude threshold must be positive, got %d", c.AmplitudeThreshold)
	}
	if c.AmplitudeThreshold > 32767 {
		return fmt.Errorf("amplitude threshold exceeds int16 range: %d", c.AmplitudeThreshold)
	}
	if c.MaxUtterance <= 0 {
		return fmt.Errorf("max utterance duration must be positive, got %v", c.MaxUtterance)
	}
	if c.TrailingSilence <= 0 {
		return fmt.Errorf("trailing silence duration must be positive, got %v", c.TrailingSilence)
	}
	if c.TrailingSilence >= c.MaxUtterance {
		return fmt.Errorf("trailing silence %v must be shorter than max utterance %v", c.TrailingSilence, c.MaxUtterance)
	}
	if c.MinUtterance < 0 {
		return fmt.Errorf("min utterance duration must not be negative, got %v", c.MinUtterance)
	}
	return nil
}
