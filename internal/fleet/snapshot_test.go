package fleet

import (
	"testing"
	"time"

	"github.com/HerbHall/scanfleet/internal/testutil"
	"github.com/HerbHall/scanfleet/pkg/models"
)

func TestSnapshot_SetHealthChangeDetection(t *testing.T) {
	snap := NewSnapshot()
	scanner := testutil.NewScanner()
	snap.SetScanners([]models.Scanner{scanner}, time.Now())

	committed, changed := snap.SetHealth(models.HealthRecord{
		ScannerKey: scanner.ID, Status: models.HealthStatusHealthy,
	})
	if !committed || !changed {
		t.Errorf("first record: committed=%v changed=%v, want true/true", committed, changed)
	}

	_, changed = snap.SetHealth(models.HealthRecord{
		ScannerKey: scanner.ID, Status: models.HealthStatusHealthy,
	})
	if changed {
		t.Error("same status should not report a change")
	}

	_, changed = snap.SetHealth(models.HealthRecord{
		ScannerKey: scanner.ID, Status: models.HealthStatusError,
	})
	if !changed {
		t.Error("status flip should report a change")
	}
}

func TestSnapshot_DropsLateRecords(t *testing.T) {
	snap := NewSnapshot()
	old := testutil.NewScanner(testutil.WithID("satellite_old"))
	snap.SetScanners([]models.Scanner{old}, time.Now())

	// Fleet changes while a probe for the removed scanner is in flight.
	replacement := testutil.NewScanner(
		testutil.WithID("satellite_new"), testutil.WithName("Other"), testutil.WithURL("http://other:9402"))
	snap.SetScanners([]models.Scanner{replacement}, time.Now())

	committed, _ := snap.SetHealth(models.HealthRecord{
		ScannerKey: "satellite_old", Status: models.HealthStatusHealthy,
	})
	if committed {
		t.Error("late record for a removed scanner must not commit")
	}
	if !snap.SetNetwork(models.NetworkInfoRecord{ScannerKey: "satellite_new"}) {
		t.Error("record for a current scanner must commit")
	}
}

func TestSnapshot_OrphanPruningOnEnrollment(t *testing.T) {
	snap := NewSnapshot()

	// Pre-enrollment the scanner has no id and is keyed by name.
	pending := testutil.NewScanner(testutil.WithID(""), testutil.WithName("Edge"))
	snap.SetScanners([]models.Scanner{pending}, time.Now())
	snap.SetHealth(models.HealthRecord{ScannerKey: "Edge", Status: models.HealthStatusDefault})

	// Enrollment completes; the same scanner now carries a real id. The
	// name-keyed record survives until the new key has one of its own.
	enrolled := testutil.NewScanner(testutil.WithID("satellite_e1"), testutil.WithName("Edge"))
	snap.SetScanners([]models.Scanner{enrolled}, time.Now())
	if _, ok := snap.Health("Edge"); !ok {
		t.Fatal("name-keyed record pruned before the new key had a record")
	}

	snap.SetHealth(models.HealthRecord{ScannerKey: "satellite_e1", Status: models.HealthStatusHealthy})
	snap.SetScanners([]models.Scanner{enrolled}, time.Now())

	if _, ok := snap.Health("Edge"); ok {
		t.Error("orphaned name-keyed record should be pruned after the new key has a record")
	}
	if _, ok := snap.Health("satellite_e1"); !ok {
		t.Error("new key's record must survive pruning")
	}
}

func TestSnapshot_FailedSuccessorProbeDoesNotPrune(t *testing.T) {
	snap := NewSnapshot()

	pending := testutil.NewScanner(testutil.WithID(""), testutil.WithName("Edge"))
	snap.SetScanners([]models.Scanner{pending}, time.Now())
	snap.SetHealth(models.HealthRecord{ScannerKey: "Edge", Status: models.HealthStatusHealthy})

	enrolled := testutil.NewScanner(testutil.WithID("satellite_e1"), testutil.WithName("Edge"))
	snap.SetScanners([]models.Scanner{enrolled}, time.Now())

	// The new key's first probe fails; the old record must stay visible.
	snap.SetHealth(models.HealthRecord{ScannerKey: "satellite_e1", Status: models.HealthStatusError})
	snap.SetNetwork(models.NetworkInfoRecord{ScannerKey: "satellite_e1", Error: "network info unavailable"})
	snap.SetScanners([]models.Scanner{enrolled}, time.Now())

	if _, ok := snap.Health("Edge"); !ok {
		t.Error("name-keyed record pruned while the new key only has an error record")
	}

	// A successful probe on the new key finally releases the old one.
	snap.SetHealth(models.HealthRecord{ScannerKey: "satellite_e1", Status: models.HealthStatusHealthy})
	snap.SetScanners([]models.Scanner{enrolled}, time.Now())

	if _, ok := snap.Health("Edge"); ok {
		t.Error("name-keyed record should be pruned once the new key has a successful record")
	}
}

func TestSnapshot_FindAndRefreshedAt(t *testing.T) {
	snap := NewSnapshot()
	if !snap.RefreshedAt().IsZero() {
		t.Error("RefreshedAt should be zero before the first poll")
	}

	scanner := testutil.NewScanner()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap.SetScanners([]models.Scanner{scanner}, at)

	if got := snap.RefreshedAt(); !got.Equal(at) {
		t.Errorf("RefreshedAt = %v, want %v", got, at)
	}
	if _, ok := snap.Find(scanner.ID); !ok {
		t.Error("Find should locate the scanner by key")
	}
	if _, ok := snap.Find("nope"); ok {
		t.Error("Find should miss unknown keys")
	}
}
