package conf

import "fmt"

// Validate checks the structural invariants a Config must satisfy
// before it can back an AudioPipeline session.
func Validate(cfg *Config) error {
	if cfg.BufferCount <= 0 {
		return fmt.Errorf("conf: buffer_count must be positive, got %d", cfg.BufferCount)
	}
	if cfg.BufferSize <= 0 {
		return fmt.Errorf("conf: buffer_size must be positive, got %d", cfg.BufferSize)
	}
	if cfg.MaxPacketDescs <= 0 {
		return fmt.Errorf("conf: max_packet_descs must be positive, got %d", cfg.MaxPacketDescs)
	}
	if cfg.MaxPrebufferedBytes <= 0 {
		return fmt.Errorf("conf: max_prebuffered_bytes must be positive, got %d", cfg.MaxPrebufferedBytes)
	}
	if cfg.MaxBounceCount <= 0 {
		return fmt.Errorf("conf: max_bounce_count must be positive, got %d", cfg.MaxBounceCount)
	}
	if cfg.OutputSampleRate <= 0 {
		return fmt.Errorf("conf: output_sample_rate must be positive, got %d", cfg.OutputSampleRate)
	}
	if cfg.OutputChannels <= 0 {
		return fmt.Errorf("conf: output_num_channels must be positive, got %d", cfg.OutputChannels)
	}
	switch cfg.OutputBackend {
	case OutputBackendMalgo, OutputBackendPortAudio:
	default:
		return fmt.Errorf("conf: unknown output backend %q", cfg.OutputBackend)
	}
	return nil
}
