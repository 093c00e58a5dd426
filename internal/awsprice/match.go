package awsprice

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/satchelworks/satchel/internal/payload"
)

// Match is the result of sizing a workload onto an instance type.
type Match struct {
	InstanceType string  `json:"instance_type"`
	VCPU         int     `json:"vcpu"`
	MemoryGiB    float64 `json:"memory_gib"`
	HourlyUSD    float64 `json:"hourly_usd"`
	Confidence   float64 `json:"confidence"`
}

// Match finds the smallest instance covering the requested vCPU and
// memory. Instances below either requirement are disqualified; the
// rest are scored by normalized overshoot (vCPU and memory weighted
// equally), ties broken by lower hourly rate, then type name, so the
// result is deterministic for a fixed table. Confidence is
// 1/(1+score): 1.0 for an exact fit, shrinking as the fit loosens.
func (t *Table) Match(vcpu int, memGiB float64) (Match, error) {
	if vcpu <= 0 {
		return Match{}, payload.E("invalid_argument", "vcpu must be positive, got %d", vcpu)
	}
	if memGiB <= 0 {
		return Match{}, payload.E("invalid_argument", "memory must be positive, got %g GiB", memGiB)
	}

	best := Match{}
	bestScore := -1.0
	for _, inst := range t.instances {
		if inst.VCPU < vcpu || inst.MemoryGiB < memGiB {
			continue
		}
		score := 0.5*float64(inst.VCPU-vcpu)/float64(vcpu) + 0.5*(inst.MemoryGiB-memGiB)/memGiB
		if bestScore < 0 || score < bestScore ||
			(score == bestScore && inst.HourlyUSD < best.HourlyUSD) ||
			(score == bestScore && inst.HourlyUSD == best.HourlyUSD && inst.Type < best.InstanceType) {
			bestScore = score
			best = Match{
				InstanceType: inst.Type,
				VCPU:         inst.VCPU,
				MemoryGiB:    inst.MemoryGiB,
				HourlyUSD:    inst.HourlyUSD,
				Confidence:   1 / (1 + score),
			}
		}
	}
	if bestScore < 0 {
		return Match{}, payload.E("no_results", "no instance type covers %d vCPU / %g GiB", vcpu, memGiB)
	}
	return best, nil
}

// MatchInstance runs Match against the built-in table.
func MatchInstance(vcpu int, memGiB float64) (Match, error) {
	return DefaultTable().Match(vcpu, memGiB)
}

var (
	vcpuRe = regexp.MustCompile(`(?i)(\d+)\s*(?:x\s*)?(?:vcpus?|cpus?|cores?)`)
	memRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:gib?|gb)(?:\s*(?:of\s*)?(?:ram|memory))?`)
)

// ParseInstanceSpec extracts vCPU and memory requirements from free
// text like "4 vCPU, 16 GiB" or "8 cores / 32 GB RAM".
func ParseInstanceSpec(s string) (int, float64, error) {
	cm := vcpuRe.FindStringSubmatch(s)
	if cm == nil {
		return 0, 0, payload.E("invalid_argument", "no vCPU count found in %q", s)
	}
	vcpu, err := strconv.Atoi(cm[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parsing vCPU count: %w", err)
	}

	mm := memRe.FindStringSubmatch(s)
	if mm == nil {
		return 0, 0, payload.E("invalid_argument", "no memory size found in %q", s)
	}
	mem, err := strconv.ParseFloat(mm[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing memory size: %w", err)
	}
	return vcpu, mem, nil
}
