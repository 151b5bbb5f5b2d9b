package ui

import "strings"

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline is a fixed-size ring of samples rendered as block characters.
type Sparkline struct {
	samples []float64
	head    int
	count   int
	max     float64
}

// NewSparkline creates a sparkline holding up to size samples.
func NewSparkline(size int) *Sparkline {
	if size <= 0 {
		size = 60
	}
	return &Sparkline{samples: make([]float64, size)}
}

// Add appends a sample, evicting the oldest when full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++

	if value > s.max {
		s.max = value
	}
	// Rescan once per lap so the scale can shrink again.
	if s.count%len(s.samples) == 0 {
		s.max = 0
		for _, v := range s.samples {
			s.max = max(s.max, v)
		}
	}
}

// Render draws every buffered slot.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(len(s.samples))
}

// RenderWithWidth draws the newest width samples, left-padding with
// spaces when fewer have been added.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width > len(s.samples) {
		width = len(s.samples)
	}
	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}

	recent := s.recent()
	if len(recent) > width {
		recent = recent[len(recent)-width:]
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	sb.WriteString(strings.Repeat(" ", width-len(recent)))
	for _, v := range recent {
		sb.WriteRune(s.bar(v))
	}
	return sb.String()
}

// recent returns the buffered samples, oldest first.
func (s *Sparkline) recent() []float64 {
	n := min(s.count, len(s.samples))
	out := make([]float64, 0, n)
	start := 0
	if s.count >= len(s.samples) {
		start = s.head
	}
	for i := range n {
		out = append(out, s.samples[(start+i)%len(s.samples)])
	}
	return out
}

func (s *Sparkline) bar(v float64) rune {
	top := max(s.max, 1)
	i := int(v / top * float64(len(SparklineChars)-1))
	i = max(0, min(i, len(SparklineChars)-1))
	return SparklineChars[i]
}

// Clear removes all samples.
func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head, s.count, s.max = 0, 0, 0
}

// Count returns the number of samples added since the last Clear.
func (s *Sparkline) Count() int { return s.count }

// Max returns the current scale maximum.
func (s *Sparkline) Max() float64 { return s.max }
