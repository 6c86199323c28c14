package internal

import "math"

// TimestampStatistics summarizes the timestamps found in a stream.
// Timestamps and steps are in microseconds.
type TimestampStatistics struct {
	Pid        uint16   `json:"pid,omitempty"`
	Count      int      `json:"count"`
	First      uint64   `json:"firstUs,omitempty"`
	Last       uint64   `json:"lastUs,omitempty"`
	FrameRate  float64  `json:"frameRate,omitempty"`
	TimeStamps []uint64 `json:"-"`
	MaxStep    int64    `json:"maxStepUs,omitempty"`
	MinStep    int64    `json:"minStepUs,omitempty"`
	AvgStep    int64    `json:"avgStepUs,omitempty"`
	// Errors
	Errors []string `json:"errors,omitempty"`
}

// stepTolerance is how far steps may differ before they count as irregular.
// Timestamps generated at 30 fps alternate between 33333 and 33334 µs steps.
const stepTolerance = 1

func (p *JsonPrinter) PrintStatistics(s TimestampStatistics, show bool) {
	s.Calculate()
	p.Print(s, show)
}

func sliceMinMaxAverage(values []int64) (min, max, avg int64) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	min = values[0]
	max = values[0]
	sum := int64(0)
	for _, number := range values {
		if number < min {
			min = number
		}
		if number > max {
			max = number
		}
		sum += number
	}
	avg = sum / int64(len(values))
	return min, max, avg
}

// CalculateSteps returns the signed differences between consecutive timestamps.
func CalculateSteps(timestamps []uint64) []int64 {
	if len(timestamps) < 2 {
		return nil
	}

	steps := make([]int64, len(timestamps)-1)
	for i := 0; i < len(timestamps)-1; i++ {
		steps[i] = int64(timestamps[i+1] - timestamps[i])
	}
	return steps
}

// Calculate fills in everything derived from TimeStamps.
func (s *TimestampStatistics) Calculate() {
	s.Count = len(s.TimeStamps)
	if s.Count == 0 {
		s.Errors = append(s.Errors, "no timestamps found")
		return
	}
	s.First = s.TimeStamps[0]
	s.Last = s.TimeStamps[s.Count-1]
	if s.Count < 2 {
		s.Errors = append(s.Errors, "too few timestamps to calculate frame rate")
		return
	}

	steps := CalculateSteps(s.TimeStamps)
	minStep, maxStep, avgStep := sliceMinMaxAverage(steps)
	s.MinStep, s.MaxStep, s.AvgStep = minStep, maxStep, avgStep
	if minStep <= 0 {
		s.Errors = append(s.Errors, "timestamps not increasing")
	}
	if maxStep-minStep > stepTolerance {
		s.Errors = append(s.Errors, "irregular timestamp steps")
	}

	duration := float64(int64(s.Last-s.First)) / 1e6
	if duration <= 0 {
		return
	}
	fps := float64(s.Count-1) / duration
	s.FrameRate = math.Round(fps*100) / 100
}
