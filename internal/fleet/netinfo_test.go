package fleet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/HerbHall/scanfleet/internal/testutil"
)

func TestProbeNetwork_DefaultScannerSynthesized(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	probe := NewNetworkProbe(newAPIClient(srv.Client(), nil), srv.URL)
	scanner := testutil.NewDefaultScanner(testutil.WithSubnets("10.1.0.0/24", "10.2.0.0/24"))

	rec := probe.ProbeNetwork(context.Background(), scanner)

	if len(rec.Subnets) != 2 || rec.Subnets[0] != "10.1.0.0/24" {
		t.Errorf("subnets = %v, want configured subnets", rec.Subnets)
	}
	if calls.Load() != 0 {
		t.Errorf("backend calls = %d, want 0 for default scanner", calls.Load())
	}
}

func TestProbeNetwork_SatelliteSideChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"status":"healthy",
			"network_info":{
				"subnets":["192.168.10.0/24"],
				"interfaces":[{"name":"eth0","is_up":true,"speed_mbps":1000}]
			}
		}`))
	}))
	defer srv.Close()

	probe := NewNetworkProbe(newAPIClient(srv.Client(), nil), srv.URL)
	rec := probe.ProbeNetwork(context.Background(), testutil.NewScanner())

	if len(rec.Subnets) != 1 || rec.Subnets[0] != "192.168.10.0/24" {
		t.Errorf("subnets = %v, want one detected subnet", rec.Subnets)
	}
	if len(rec.Interfaces) != 1 {
		t.Fatalf("interfaces = %v, want one", rec.Interfaces)
	}
	if iface := rec.Interfaces[0]; iface.Name != "eth0" || !iface.IsUp || iface.SpeedMbps != 1000 {
		t.Errorf("interface = %+v, want eth0 up 1000", iface)
	}
}

func TestProbeNetwork_MissingSideChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	probe := NewNetworkProbe(newAPIClient(srv.Client(), nil), srv.URL)
	rec := probe.ProbeNetwork(context.Background(), testutil.NewScanner())

	if rec.Subnets == nil || len(rec.Subnets) != 0 {
		t.Errorf("subnets = %#v, want empty non-nil slice", rec.Subnets)
	}
	if rec.Error != "" {
		t.Errorf("error = %q, want empty", rec.Error)
	}
}

func TestProbeNetwork_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	probe := NewNetworkProbe(newAPIClient(srv.Client(), nil), srv.URL)
	rec := probe.ProbeNetwork(context.Background(), testutil.NewScanner())

	if rec.Error == "" {
		t.Error("expected error message on transport failure")
	}
}

func TestRefreshNetworks_DefaultScannerDenied(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	probe := NewNetworkProbe(newAPIClient(srv.Client(), nil), srv.URL)
	err := probe.RefreshNetworks(context.Background(), testutil.NewDefaultScanner())

	if !errors.Is(err, ErrActionDenied) {
		t.Errorf("err = %v, want ErrActionDenied", err)
	}
	if calls.Load() != 0 {
		t.Errorf("backend calls = %d, want 0", calls.Load())
	}
}

func TestRefreshNetworks_PostsToAgent(t *testing.T) {
	var gotMethod, gotPath atomic.Value
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod.Store(r.Method)
		gotPath.Store(r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","message":"refresh scheduled"}`))
	}))
	defer agent.Close()

	probe := NewNetworkProbe(newAPIClient(agent.Client(), nil), "http://registry.invalid")
	scanner := testutil.NewScanner(testutil.WithURL(agent.URL))

	if err := probe.RefreshNetworks(context.Background(), scanner); err != nil {
		t.Fatalf("RefreshNetworks: %v", err)
	}
	if gotMethod.Load() != http.MethodPost {
		t.Errorf("method = %v, want POST", gotMethod.Load())
	}
	if gotPath.Load() != "/refresh-networks" {
		t.Errorf("path = %v, want /refresh-networks", gotPath.Load())
	}
}

func TestRefreshNetworks_ForbiddenMapsToDenied(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer agent.Close()

	probe := NewNetworkProbe(newAPIClient(agent.Client(), nil), "http://registry.invalid")
	scanner := testutil.NewScanner(testutil.WithURL(agent.URL))

	err := probe.RefreshNetworks(context.Background(), scanner)
	if !errors.Is(err, ErrActionDenied) {
		t.Errorf("err = %v, want ErrActionDenied", err)
	}
}

func TestRefreshNetworks_OtherFailureIsNotDenied(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer agent.Close()

	probe := NewNetworkProbe(newAPIClient(agent.Client(), nil), "http://registry.invalid")
	scanner := testutil.NewScanner(testutil.WithURL(agent.URL))

	err := probe.RefreshNetworks(context.Background(), scanner)
	if err == nil || errors.Is(err, ErrActionDenied) {
		t.Errorf("err = %v, want non-denied failure", err)
	}
}
