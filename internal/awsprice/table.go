// Package awsprice holds the EC2 instance matcher and the AWS cost
// calculators. Prices come from a built-in lookup table of current
// generation instance types (us-east-1 Linux on-demand rates); the
// optional price feed can refresh the hourly rates at runtime.
package awsprice

import "sort"

// Instance is one row of the pricing table.
type Instance struct {
	Type      string  `json:"instance_type"`
	Family    string  `json:"family"`
	VCPU      int     `json:"vcpu"`
	MemoryGiB float64 `json:"memory_gib"`
	HourlyUSD float64 `json:"hourly_usd"`
}

// Table is an immutable set of instances sorted by type name.
type Table struct {
	instances []Instance
	byType    map[string]Instance
}

var defaultInstances = []Instance{
	{"t3.micro", "burstable", 2, 1, 0.0104},
	{"t3.small", "burstable", 2, 2, 0.0208},
	{"t3.medium", "burstable", 2, 4, 0.0416},
	{"t3.large", "burstable", 2, 8, 0.0832},
	{"t3.xlarge", "burstable", 4, 16, 0.1664},
	{"t3.2xlarge", "burstable", 8, 32, 0.3328},
	{"m5.large", "general", 2, 8, 0.096},
	{"m5.xlarge", "general", 4, 16, 0.192},
	{"m5.2xlarge", "general", 8, 32, 0.384},
	{"m5.4xlarge", "general", 16, 64, 0.768},
	{"m5.8xlarge", "general", 32, 128, 1.536},
	{"m5.12xlarge", "general", 48, 192, 2.304},
	{"m5.16xlarge", "general", 64, 256, 3.072},
	{"m5.24xlarge", "general", 96, 384, 4.608},
	{"m6i.large", "general", 2, 8, 0.096},
	{"m6i.xlarge", "general", 4, 16, 0.192},
	{"m6i.2xlarge", "general", 8, 32, 0.384},
	{"m6i.4xlarge", "general", 16, 64, 0.768},
	{"m6i.8xlarge", "general", 32, 128, 1.536},
	{"m6i.16xlarge", "general", 64, 256, 3.072},
	{"c5.large", "compute", 2, 4, 0.085},
	{"c5.xlarge", "compute", 4, 8, 0.17},
	{"c5.2xlarge", "compute", 8, 16, 0.34},
	{"c5.4xlarge", "compute", 16, 32, 0.68},
	{"c5.9xlarge", "compute", 36, 72, 1.53},
	{"c5.18xlarge", "compute", 72, 144, 3.06},
	{"c6i.large", "compute", 2, 4, 0.085},
	{"c6i.xlarge", "compute", 4, 8, 0.17},
	{"c6i.2xlarge", "compute", 8, 16, 0.34},
	{"c6i.4xlarge", "compute", 16, 32, 0.68},
	{"c6i.8xlarge", "compute", 32, 64, 1.36},
	{"r5.large", "memory", 2, 16, 0.126},
	{"r5.xlarge", "memory", 4, 32, 0.252},
	{"r5.2xlarge", "memory", 8, 64, 0.504},
	{"r5.4xlarge", "memory", 16, 128, 1.008},
	{"r5.8xlarge", "memory", 32, 256, 2.016},
	{"r6i.large", "memory", 2, 16, 0.126},
	{"r6i.xlarge", "memory", 4, 32, 0.252},
	{"r6i.2xlarge", "memory", 8, 64, 0.504},
	{"r6i.4xlarge", "memory", 16, 128, 1.008},
}

// DefaultTable returns the built-in pricing table.
func DefaultTable() *Table {
	return newTable(defaultInstances)
}

func newTable(instances []Instance) *Table {
	sorted := append([]Instance(nil), instances...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Type < sorted[j].Type })

	byType := make(map[string]Instance, len(sorted))
	for _, inst := range sorted {
		byType[inst.Type] = inst
	}
	return &Table{instances: sorted, byType: byType}
}

// Lookup returns the instance row for an exact type name.
func (t *Table) Lookup(instanceType string) (Instance, bool) {
	inst, ok := t.byType[instanceType]
	return inst, ok
}

// Instances returns the rows sorted by type name.
func (t *Table) Instances() []Instance {
	return append([]Instance(nil), t.instances...)
}

// WithPrices returns a copy of the table with hourly rates replaced
// for every instance type present in prices. Unknown types in prices
// are ignored; table rows without an override keep their built-in rate.
func (t *Table) WithPrices(prices map[string]float64) *Table {
	updated := make([]Instance, len(t.instances))
	for i, inst := range t.instances {
		if p, ok := prices[inst.Type]; ok && p > 0 {
			inst.HourlyUSD = p
		}
		updated[i] = inst
	}
	return newTable(updated)
}
