// Package energy derives power and carbon impact readings from a log of
// timestamped hardware power samples, and provides the sampler that
// produces such logs.
package energy

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"codeberg.org/veldt/trainwatch/internal/errors"
)

const (
	// DefaultPUE is the industry-average power usage effectiveness
	// applied when samples do not carry a datacenter-specific ratio.
	DefaultPUE = 1.58

	// DefaultCarbonIntensity is the global-average grid intensity in
	// grams CO2eq per kWh, used when samples carry none.
	DefaultCarbonIntensity = 475.0

	wattHoursPerKWh = 1000.0
	gramsPerKg      = 1000.0
)

// Sample is one line of the energy log. Power fields are pointers so an
// unavailable source is distinguishable from a zero-watt reading.
type Sample struct {
	Timestamp       time.Time `json:"timestamp"`
	GPUPowerWatts   *float64  `json:"gpu_power_watts,omitempty"`
	CPUPowerWatts   *float64  `json:"cpu_power_watts,omitempty"`
	CarbonIntensity float64   `json:"carbon_intensity_g_per_kwh,omitempty"`
	PUE             float64   `json:"pue,omitempty"`
}

func (s *Sample) powerWatts() (float64, bool) {
	var watts float64
	ok := false
	if s.GPUPowerWatts != nil {
		watts += *s.GPUPowerWatts
		ok = true
	}
	if s.CPUPowerWatts != nil {
		watts += *s.CPUPowerWatts
		ok = true
	}

	return watts, ok
}

// Reading is the derived impact of a run over the logged interval.
type Reading struct {
	KgCarbon    float64
	TotalPower  float64 // kWh, PUE applied
	PUE         float64
	ExpLenHours float64
}

// ReadFrom derives a Reading from path, which is either a single jsonl
// log file or a directory of them. It fails with ErrNoMetric when no
// sample carries a GPU or CPU power value.
func ReadFrom(path string) (Reading, error) {
	errFactory := errors.New()

	info, err := os.Stat(path)
	if err != nil {
		return Reading{}, errFactory.Wrap(ErrLogAccess, err)
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return Reading{}, errFactory.Wrap(ErrLogAccess, err)
		}

		files = files[:0]
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
		sort.Strings(files)
	}

	var samples []Sample
	for _, file := range files {
		parsed, err := parseLog(file)
		if err != nil {
			return Reading{}, err
		}
		samples = append(samples, parsed...)
	}

	return compute(samples)
}

func parseLog(path string) ([]Sample, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrLogAccess, err)
	}
	defer f.Close()

	var samples []Sample
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var sample Sample
		if err := json.Unmarshal(line, &sample); err != nil {
			return nil, errFactory.Wrap(ErrLogParse, err).WithMessage("invalid sample in " + path)
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, errFactory.Wrap(ErrLogAccess, err)
	}

	return samples, nil
}

func compute(samples []Sample) (Reading, error) {
	errFactory := errors.New()

	usable := samples[:0:0]
	for _, s := range samples {
		if _, ok := s.powerWatts(); ok {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return Reading{}, errFactory.WithMessage(ErrNoMetric, "unable to get either GPU or CPU metric")
	}

	sort.Slice(usable, func(i, j int) bool {
		return usable[i].Timestamp.Before(usable[j].Timestamp)
	})

	pue := DefaultPUE
	for _, s := range usable {
		if s.PUE > 0 {
			pue = s.PUE
			break
		}
	}

	var kwh, kgCarbon float64
	for i := 1; i < len(usable); i++ {
		prev, cur := usable[i-1], usable[i]

		dtHours := cur.Timestamp.Sub(prev.Timestamp).Hours()
		if dtHours <= 0 {
			continue
		}

		prevWatts, _ := prev.powerWatts()
		curWatts, _ := cur.powerWatts()
		intervalKWh := (prevWatts + curWatts) / 2 * dtHours / wattHoursPerKWh * pue

		intensity := cur.CarbonIntensity
		if intensity <= 0 {
			intensity = DefaultCarbonIntensity
		}

		kwh += intervalKWh
		kgCarbon += intervalKWh * intensity / gramsPerKg
	}

	return Reading{
		KgCarbon:    kgCarbon,
		TotalPower:  kwh,
		PUE:         pue,
		ExpLenHours: usable[len(usable)-1].Timestamp.Sub(usable[0].Timestamp).Hours(),
	}, nil
}
