package energy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/veldt/trainwatch/internal/errors"
	"codeberg.org/veldt/trainwatch/internal/logger"
	"github.com/shirou/gopsutil/v4/cpu"
)

const (
	defaultDirPerm     = 0o755
	defaultLogPerm     = 0o644
	defaultInterval    = 10 * time.Second
	defaultCPUTDPWatts = 65.0
)

type SamplerConfig struct {
	LogPath string
	// Interval between samples; defaults to 10s.
	Interval time.Duration
	// CarbonIntensity in g CO2eq/kWh stamped onto each sample;
	// defaults to the global grid average.
	CarbonIntensity float64
	// PUE stamped onto each sample; defaults to the industry average.
	PUE float64
	// CPUTDPWatts is the nominal package power used to turn CPU
	// utilization into a power estimate.
	CPUTDPWatts float64
}

// Sampler appends one power sample per tick to the energy log. GPU
// power comes from NVML, CPU power is estimated from utilization; each
// source is optional and a tick where neither is available writes
// nothing.
type Sampler struct {
	cfg  SamplerConfig
	file *os.File
	gpu  *gpuPower
}

func NewSampler(cfg SamplerConfig) (*Sampler, error) {
	errFactory := errors.New()

	if cfg.LogPath == "" {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "energy log path must not be empty")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.CarbonIntensity <= 0 {
		cfg.CarbonIntensity = DefaultCarbonIntensity
	}
	if cfg.PUE <= 0 {
		cfg.PUE = DefaultPUE
	}
	if cfg.CPUTDPWatts <= 0 {
		cfg.CPUTDPWatts = defaultCPUTDPWatts
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrSamplerInit, err)
	}

	file, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultLogPerm)
	if err != nil {
		return nil, errFactory.Wrap(ErrSamplerInit, err)
	}

	return &Sampler{
		cfg:  cfg,
		file: file,
		gpu:  newGPUPower(),
	}, nil
}

// Run samples until the context is canceled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	logger.Info().Msgf("Sampling energy to %s every %s", s.cfg.LogPath, s.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sample, ok := s.collect()
			if !ok {
				logger.Warn().Msg("No GPU or CPU power source available, skipping sample")
				continue
			}
			if err := s.Append(sample); err != nil {
				return err
			}
		}
	}
}

func (s *Sampler) collect() (Sample, bool) {
	sample := Sample{
		Timestamp:       time.Now().UTC(),
		CarbonIntensity: s.cfg.CarbonIntensity,
		PUE:             s.cfg.PUE,
	}

	ok := false
	if s.gpu != nil {
		if watts, err := s.gpu.powerWatts(); err == nil {
			sample.GPUPowerWatts = &watts
			ok = true
		} else {
			logger.Debug().Err(err).Msg("GPU power read failed")
		}
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		watts := percents[0] / 100 * s.cfg.CPUTDPWatts
		sample.CPUPowerWatts = &watts
		ok = true
	} else if err != nil {
		logger.Debug().Err(err).Msg("CPU utilization read failed")
	}

	return sample, ok
}

// Append writes one sample as a jsonl line to the log.
func (s *Sampler) Append(sample Sample) error {
	errFactory := errors.New()

	data, err := json.Marshal(sample)
	if err != nil {
		return errFactory.Wrap(ErrSamplerWrite, err)
	}

	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return errFactory.Wrap(ErrSamplerWrite, err)
	}

	return nil
}

func (s *Sampler) Close() error {
	if s.gpu != nil {
		s.gpu.shutdown()
	}

	return s.file.Close()
}
