package energy

import (
	"errors"
	"fmt"

	"codeberg.org/veldt/trainwatch/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const milliWattsToWatts = 1000

var ErrNVMLFailure = errors.New("NVML operation failed")

// gpuPower reads board power draw for the first GPU via NVML.
type gpuPower struct {
	device nvml.Device
}

// newGPUPower returns nil when no NVIDIA GPU is usable; the sampler
// then degrades to CPU-only samples.
func newGPUPower() *gpuPower {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		logger.Debug().Msgf("NVML unavailable: %v", nvml.ErrorString(ret))
		return nil
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		logger.Debug().Msgf("No GPU at index 0: %v", nvml.ErrorString(ret))
		nvml.Shutdown()
		return nil
	}

	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		logger.Info().Msgf("Detected GPU: %v", name)
	}

	return &gpuPower{device: device}
}

func (g *gpuPower) powerWatts() (float64, error) {
	milliWatts, ret := g.device.GetPowerUsage()
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("%w: %v", ErrNVMLFailure, nvml.ErrorString(ret))
	}

	return float64(milliWatts) / milliWattsToWatts, nil
}

func (g *gpuPower) shutdown() {
	nvml.Shutdown()
}
