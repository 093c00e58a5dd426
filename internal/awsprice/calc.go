package awsprice

import (
	"math"
	"sort"

	"github.com/satchelworks/satchel/internal/payload"
)

// DefaultHoursPerMonth is the AWS billing convention for always-on
// instances.
const DefaultHoursPerMonth = 730

// regionFactors scale the us-east-1 compute rate. Storage and egress
// use the us-east-1 tiers everywhere; regional spread there is small
// enough for an estimate.
var regionFactors = map[string]float64{
	"us-east-1":      1.00,
	"us-east-2":      1.00,
	"us-west-1":      1.08,
	"us-west-2":      1.00,
	"eu-west-1":      1.02,
	"eu-west-2":      1.05,
	"eu-central-1":   1.08,
	"ap-southeast-1": 1.12,
	"ap-southeast-2": 1.13,
	"ap-northeast-1": 1.14,
	"ap-south-1":     0.98,
	"sa-east-1":      1.35,
}

// ebsRates are USD per GiB-month by volume type.
var ebsRates = map[string]float64{
	"gp3": 0.08,
	"gp2": 0.10,
	"io1": 0.125,
	"io2": 0.125,
	"st1": 0.045,
	"sc1": 0.015,
}

type tier struct {
	upTo float64 // cumulative GiB covered by this tier
	rate float64 // USD per GiB-month
}

var s3Tiers = []tier{
	{51200, 0.023},
	{512000, 0.022},
	{math.Inf(1), 0.021},
}

// First 100 GiB of egress each month is free.
var egressTiers = []tier{
	{100, 0},
	{10240, 0.09},
	{51200, 0.085},
	{153600, 0.07},
	{math.Inf(1), 0.05},
}

// Regions returns the supported region names, sorted.
func Regions() []string {
	names := make([]string, 0, len(regionFactors))
	for r := range regionFactors {
		names = append(names, r)
	}
	sort.Strings(names)
	return names
}

// EC2Monthly estimates the monthly on-demand cost of count instances
// of instanceType in region. hoursPerMonth <= 0 selects the 730-hour
// billing convention, count <= 0 means one instance.
func (t *Table) EC2Monthly(instanceType string, count int, hoursPerMonth float64, region string) (float64, error) {
	inst, ok := t.Lookup(instanceType)
	if !ok {
		return 0, payload.E("invalid_argument", "unknown instance type %q", instanceType)
	}
	factor, ok := regionFactors[region]
	if !ok {
		return 0, payload.E("invalid_argument", "unknown region %q", region)
	}
	if count <= 0 {
		count = 1
	}
	if hoursPerMonth <= 0 {
		hoursPerMonth = DefaultHoursPerMonth
	}
	return round2(inst.HourlyUSD * factor * hoursPerMonth * float64(count)), nil
}

// EBSMonthly estimates monthly volume cost by type and size.
func EBSMonthly(volumeType string, sizeGiB float64) (float64, error) {
	rate, ok := ebsRates[volumeType]
	if !ok {
		return 0, payload.E("invalid_argument", "unknown EBS volume type %q", volumeType)
	}
	if sizeGiB < 0 {
		return 0, payload.E("invalid_argument", "volume size must not be negative, got %g", sizeGiB)
	}
	return round2(rate * sizeGiB), nil
}

// S3Monthly estimates monthly standard-storage cost for storageGiB.
func S3Monthly(storageGiB float64) float64 {
	return round2(tierCost(storageGiB, s3Tiers))
}

// DataTransferOutMonthly estimates monthly internet egress cost.
func DataTransferOutMonthly(egressGiB float64) float64 {
	return round2(tierCost(egressGiB, egressTiers))
}

// CostRequest describes a workload for a combined estimate. Zero
// fields skip their component.
type CostRequest struct {
	Region        string  `json:"region"`
	InstanceType  string  `json:"instance_type,omitempty"`
	InstanceCount int     `json:"instance_count,omitempty"`
	HoursPerMonth float64 `json:"hours_per_month,omitempty"`
	EBSVolumeType string  `json:"ebs_volume_type,omitempty"`
	EBSSizeGiB    float64 `json:"ebs_size_gib,omitempty"`
	S3StorageGiB  float64 `json:"s3_storage_gib,omitempty"`
	EgressGiB     float64 `json:"egress_gib,omitempty"`
}

// CostEstimate is the combined monthly estimate with a per-component
// breakdown.
type CostEstimate struct {
	Region     string             `json:"region"`
	Components map[string]float64 `json:"components"`
	MonthlyUSD float64            `json:"monthly_usd"`
}

// EstimateMonthlyCost sums the component estimates for req.
func (t *Table) EstimateMonthlyCost(req CostRequest) (CostEstimate, error) {
	if _, ok := regionFactors[req.Region]; !ok {
		return CostEstimate{}, payload.E("invalid_argument", "unknown region %q", req.Region)
	}

	est := CostEstimate{Region: req.Region, Components: map[string]float64{}}
	if req.InstanceType != "" {
		ec2, err := t.EC2Monthly(req.InstanceType, req.InstanceCount, req.HoursPerMonth, req.Region)
		if err != nil {
			return CostEstimate{}, err
		}
		est.Components["ec2"] = ec2
	}
	if req.EBSSizeGiB > 0 {
		volType := req.EBSVolumeType
		if volType == "" {
			volType = "gp3"
		}
		ebs, err := EBSMonthly(volType, req.EBSSizeGiB)
		if err != nil {
			return CostEstimate{}, err
		}
		est.Components["ebs"] = ebs
	}
	if req.S3StorageGiB > 0 {
		est.Components["s3"] = S3Monthly(req.S3StorageGiB)
	}
	if req.EgressGiB > 0 {
		est.Components["data_transfer_out"] = DataTransferOutMonthly(req.EgressGiB)
	}

	var total float64
	for _, v := range est.Components {
		total += v
	}
	est.MonthlyUSD = round2(total)
	return est, nil
}

func tierCost(amount float64, tiers []tier) float64 {
	cost := 0.0
	prev := 0.0
	for _, t := range tiers {
		if amount <= prev {
			break
		}
		span := math.Min(amount, t.upTo) - prev
		cost += span * t.rate
		prev = t.upTo
	}
	return cost
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
