package energy_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/veldt/trainwatch/internal/energy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func writeLog(t *testing.T, path string, samples []energy.Sample) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, s := range samples {
		require.NoError(t, enc.Encode(s))
	}
}

func TestReadFromConstantDraw(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	samples := []energy.Sample{
		{Timestamp: start, GPUPowerWatts: floatPtr(100), CarbonIntensity: 500, PUE: 1.0},
		{Timestamp: start.Add(time.Hour), GPUPowerWatts: floatPtr(100), CarbonIntensity: 500, PUE: 1.0},
		{Timestamp: start.Add(2 * time.Hour), GPUPowerWatts: floatPtr(100), CarbonIntensity: 500, PUE: 1.0},
	}

	path := filepath.Join(t.TempDir(), "impact.jsonl")
	writeLog(t, path, samples)

	reading, err := energy.ReadFrom(path)
	require.NoError(t, err)

	// 100W over 2h at PUE 1.0 is 0.2 kWh; at 500 g/kWh that is 0.1 kg.
	assert.InDelta(t, 0.2, reading.TotalPower, 1e-9)
	assert.InDelta(t, 0.1, reading.KgCarbon, 1e-9)
	assert.InDelta(t, 1.0, reading.PUE, 1e-9)
	assert.InDelta(t, 2.0, reading.ExpLenHours, 1e-9)
}

func TestReadFromAppliesPUE(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	samples := []energy.Sample{
		{Timestamp: start, CPUPowerWatts: floatPtr(50), PUE: 2.0},
		{Timestamp: start.Add(time.Hour), CPUPowerWatts: floatPtr(50), PUE: 2.0},
	}

	path := filepath.Join(t.TempDir(), "impact.jsonl")
	writeLog(t, path, samples)

	reading, err := energy.ReadFrom(path)
	require.NoError(t, err)

	// 50W over 1h doubled by PUE 2.0.
	assert.InDelta(t, 0.1, reading.TotalPower, 1e-9)
	assert.InDelta(t, 2.0, reading.PUE, 1e-9)
}

func TestReadFromSumsGPUAndCPU(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	samples := []energy.Sample{
		{Timestamp: start, GPUPowerWatts: floatPtr(200), CPUPowerWatts: floatPtr(50), PUE: 1.0},
		{Timestamp: start.Add(time.Hour), GPUPowerWatts: floatPtr(200), CPUPowerWatts: floatPtr(50), PUE: 1.0},
	}

	path := filepath.Join(t.TempDir(), "impact.jsonl")
	writeLog(t, path, samples)

	reading, err := energy.ReadFrom(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, reading.TotalPower, 1e-9)
}

func TestReadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	writeLog(t, filepath.Join(dir, "a.jsonl"), []energy.Sample{
		{Timestamp: start, GPUPowerWatts: floatPtr(100), PUE: 1.0},
	})
	writeLog(t, filepath.Join(dir, "b.jsonl"), []energy.Sample{
		{Timestamp: start.Add(time.Hour), GPUPowerWatts: floatPtr(100), PUE: 1.0},
	})

	reading, err := energy.ReadFrom(dir)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, reading.TotalPower, 1e-9)
	assert.InDelta(t, 1.0, reading.ExpLenHours, 1e-9)
}

func TestReadFromNoMetric(t *testing.T) {
	// Samples exist but none carries a power value.
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	samples := []energy.Sample{
		{Timestamp: start, CarbonIntensity: 500},
		{Timestamp: start.Add(time.Hour), CarbonIntensity: 500},
	}

	path := filepath.Join(t.TempDir(), "impact.jsonl")
	writeLog(t, path, samples)

	_, err := energy.ReadFrom(path)
	require.Error(t, err)
	assert.True(t, energy.IsNoMetric(err), "expected the measurement-unavailable error")
}

func TestReadFromEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impact.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := energy.ReadFrom(path)
	require.Error(t, err)
	assert.True(t, energy.IsNoMetric(err))
}

func TestReadFromMissingPath(t *testing.T) {
	_, err := energy.ReadFrom(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	assert.False(t, energy.IsNoMetric(err), "an I/O failure is not a measurement failure")
}

func TestReadFromInvalidLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impact.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0o644))

	_, err := energy.ReadFrom(path)
	require.Error(t, err)
	assert.False(t, energy.IsNoMetric(err))
}

func TestSamplerAppendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impact.jsonl")

	sampler, err := energy.NewSampler(energy.SamplerConfig{LogPath: path})
	require.NoError(t, err)
	defer sampler.Close()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sampler.Append(energy.Sample{
		Timestamp:     start,
		GPUPowerWatts: floatPtr(120),
		PUE:           1.1,
	}))
	require.NoError(t, sampler.Append(energy.Sample{
		Timestamp:     start.Add(time.Hour),
		GPUPowerWatts: floatPtr(120),
		PUE:           1.1,
	}))

	reading, err := energy.ReadFrom(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.12*1.1, reading.TotalPower, 1e-9)
	assert.InDelta(t, 1.0, reading.ExpLenHours, 1e-9)
}
