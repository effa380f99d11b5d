package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// stage sobe (ou desce) linearmente até target VUs ao longo de duration.
type stage struct {
	duration time.Duration
	target   int
}

// parseStages lê "30s:10,1m:50,1m:200".
func parseStages(s string) ([]stage, error) {
	var out []stage
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, t, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("stage %q: expected duration:target", part)
		}
		dur, err := time.ParseDuration(strings.TrimSpace(d))
		if err != nil || dur <= 0 {
			return nil, fmt.Errorf("stage %q: invalid duration", part)
		}
		target, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil || target < 0 {
			return nil, fmt.Errorf("stage %q: invalid target", part)
		}
		out = append(out, stage{duration: dur, target: target})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no stages")
	}
	return out, nil
}

func totalDuration(stages []stage) time.Duration {
	var d time.Duration
	for _, s := range stages {
		d += s.duration
	}
	return d
}

func maxTarget(stages []stage) int {
	m := 0
	for _, s := range stages {
		if s.target > m {
			m = s.target
		}
	}
	return m
}

// targetAt devolve quantos VUs devem estar ativos após elapsed. Antes do
// primeiro estágio a rampa parte de zero.
func targetAt(stages []stage, elapsed time.Duration) int {
	from := 0
	for _, s := range stages {
		if elapsed < s.duration {
			frac := float64(elapsed) / float64(s.duration)
			return from + int(float64(s.target-from)*frac)
		}
		elapsed -= s.duration
		from = s.target
	}
	return from
}
