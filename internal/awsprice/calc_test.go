package awsprice

import (
	"testing"

	"github.com/satchelworks/satchel/internal/payload"
)

func TestEC2Monthly(t *testing.T) {
	table := DefaultTable()

	got, err := table.EC2Monthly("m5.large", 1, 0, "us-east-1")
	if err != nil {
		t.Fatalf("EC2Monthly: %v", err)
	}
	if got != 70.08 {
		t.Errorf("m5.large monthly = %v, want 70.08", got)
	}

	got, err = table.EC2Monthly("m5.large", 3, 100, "us-east-1")
	if err != nil {
		t.Fatalf("EC2Monthly: %v", err)
	}
	if got != 28.80 {
		t.Errorf("3x100h = %v, want 28.80", got)
	}
}

func TestEC2MonthlyRegionFactor(t *testing.T) {
	got, err := DefaultTable().EC2Monthly("m5.large", 1, 0, "eu-central-1")
	if err != nil {
		t.Fatalf("EC2Monthly: %v", err)
	}
	if got != 75.69 {
		t.Errorf("eu-central-1 monthly = %v, want 75.69", got)
	}
}

func TestEC2MonthlyErrors(t *testing.T) {
	table := DefaultTable()
	if _, err := table.EC2Monthly("z9.mega", 1, 0, "us-east-1"); payload.TypeOf(err) != "invalid_argument" {
		t.Errorf("unknown type error = %v", err)
	}
	if _, err := table.EC2Monthly("m5.large", 1, 0, "moon-north-1"); payload.TypeOf(err) != "invalid_argument" {
		t.Errorf("unknown region error = %v", err)
	}
}

func TestEBSMonthly(t *testing.T) {
	got, err := EBSMonthly("gp3", 100)
	if err != nil {
		t.Fatalf("EBSMonthly: %v", err)
	}
	if got != 8.00 {
		t.Errorf("gp3 100GiB = %v, want 8", got)
	}
	if _, err := EBSMonthly("tape", 10); payload.TypeOf(err) != "invalid_argument" {
		t.Errorf("unknown volume error = %v", err)
	}
}

func TestS3MonthlyTiers(t *testing.T) {
	if got := S3Monthly(10); got != 0.23 {
		t.Errorf("10 GiB = %v, want 0.23", got)
	}
	// 50 TB at the first rate, the remainder at the second.
	if got := S3Monthly(100000); got != 2251.20 {
		t.Errorf("100000 GiB = %v, want 2251.20", got)
	}
	if got := S3Monthly(0); got != 0 {
		t.Errorf("0 GiB = %v, want 0", got)
	}
}

func TestDataTransferTiers(t *testing.T) {
	if got := DataTransferOutMonthly(50); got != 0 {
		t.Errorf("50 GiB = %v, want 0 (free tier)", got)
	}
	if got := DataTransferOutMonthly(1124); got != 92.16 {
		t.Errorf("1124 GiB = %v, want 92.16", got)
	}
	if got := DataTransferOutMonthly(20480); got != 1783.00 {
		t.Errorf("20480 GiB = %v, want 1783.00", got)
	}
}

func TestEstimateMonthlyCost(t *testing.T) {
	est, err := DefaultTable().EstimateMonthlyCost(CostRequest{
		Region:       "us-east-1",
		InstanceType: "m5.large",
		EBSSizeGiB:   100,
		S3StorageGiB: 10,
		EgressGiB:    50,
	})
	if err != nil {
		t.Fatalf("EstimateMonthlyCost: %v", err)
	}
	if est.Components["ec2"] != 70.08 || est.Components["ebs"] != 8.00 || est.Components["s3"] != 0.23 {
		t.Errorf("components = %v", est.Components)
	}
	if _, ok := est.Components["data_transfer_out"]; !ok {
		t.Error("free-tier egress should still appear as a component")
	}
	if est.MonthlyUSD != 78.31 {
		t.Errorf("total = %v, want 78.31", est.MonthlyUSD)
	}
}

func TestEstimateSkipsAbsentComponents(t *testing.T) {
	est, err := DefaultTable().EstimateMonthlyCost(CostRequest{Region: "us-east-1", S3StorageGiB: 10})
	if err != nil {
		t.Fatalf("EstimateMonthlyCost: %v", err)
	}
	if len(est.Components) != 1 {
		t.Errorf("components = %v, want only s3", est.Components)
	}
}

func TestRegionsSorted(t *testing.T) {
	regions := Regions()
	if len(regions) == 0 {
		t.Fatal("no regions")
	}
	for i := 1; i < len(regions); i++ {
		if regions[i-1] >= regions[i] {
			t.Fatalf("regions not sorted: %v", regions)
		}
	}
}
