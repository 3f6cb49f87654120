package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"powderlab/internal/api"
	"powderlab/internal/config"
	"powderlab/internal/logging"
	"powderlab/internal/store"
	"powderlab/internal/testsupport"
)

func startTestDaemon(t *testing.T, cfg *config.Config) (*Daemon, string) {
	t.Helper()

	if cfg == nil {
		cfg = testsupport.NewConfig(t)
	}
	st := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})
	return d, "http://" + d.APIAddr()
}

func doJSON(t *testing.T, method, url, token string, body, dest any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestDaemonRequiresToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, base := startTestDaemon(t, cfg)

	if code := doJSON(t, http.MethodGet, base+"/api/status", "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", code)
	}

	var status api.DaemonStatus
	if code := doJSON(t, http.MethodGet, base+"/api/status", cfg.Paths.APIToken, nil, &status); code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", code)
	}
	if !status.Running || status.DatabasePath == "" {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	startTestDaemon(t, cfg)

	second := &config.Config{}
	*second = *cfg
	second.Paths.APIBind = "127.0.0.1:0"
	st := testsupport.MustOpenStore(t, second)
	other, err := New(second, st, logging.NewNop())
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	if err := other.Start(context.Background()); err == nil {
		other.Stop()
		t.Fatal("second instance should fail to acquire the lock")
	}
}

func TestInspectionEndpoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, base := startTestDaemon(t, cfg)
	token := cfg.Paths.APIToken

	testsupport.SeedPowderSpec(t, d.store, &store.PowderSpec{
		PowderName: "Fe-100",
		Bounds: map[store.Analyte]store.Bound{
			store.AnalyteFlowRate: {Min: testsupport.FloatPtr(25), Max: testsupport.FloatPtr(35), Type: store.SpecDaily},
		},
	})

	var begin api.BeginInspectionResponse
	code := doJSON(t, http.MethodPost, base+"/api/inspections/begin", token, api.BeginInspectionRequest{
		PowderName:     "Fe-100",
		LotNumber:      "LOT-1",
		InspectionType: "daily",
		Inspector:      "kim",
	}, &begin)
	if code != http.StatusOK || begin.State != "new" || len(begin.Items) != 1 {
		t.Fatalf("unexpected begin response: code=%d %+v", code, begin)
	}

	var submit api.SubmitItemResponse
	code = doJSON(t, http.MethodPost, base+"/api/inspections/items", token, api.SubmitItemRequest{
		PowderName: "Fe-100",
		LotNumber:  "LOT-1",
		ItemName:   "FlowRate",
		Values:     []string{"30", "31"},
	}, &submit)
	if code != http.StatusOK || *submit.Average != 30.5 || submit.Result != "PASS" || !submit.Completed {
		t.Fatalf("unexpected submit response: code=%d %+v", code, submit)
	}

	var result api.InspectionResult
	code = doJSON(t, http.MethodGet, base+"/api/inspections/Fe-100/LOT-1", token, nil, &result)
	if code != http.StatusOK || result.FinalResult != "PASS" {
		t.Fatalf("unexpected result: code=%d %+v", code, result)
	}

	if code := doJSON(t, http.MethodGet, base+"/api/inspections/ghost/none", token, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for missing result, got %d", code)
	}

	var errResp api.ErrorResponse
	code = doJSON(t, http.MethodPost, base+"/api/inspections/begin", token, api.BeginInspectionRequest{
		PowderName:     "ghost",
		LotNumber:      "L1",
		InspectionType: "daily",
	}, &errResp)
	if code != http.StatusBadRequest || errResp.Error == "" || errResp.CorrelationID == "" {
		t.Errorf("expected 400 with correlated error, got %d %+v", code, errResp)
	}
}

func TestBlendingAndTraceEndpoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, base := startTestDaemon(t, cfg)
	token := cfg.Paths.APIToken

	testsupport.SeedRecipes(t, d.store,
		&store.Recipe{ProductName: "MIX-1", PowderName: "Fe-100", Ratio: 100, TolerancePercent: 5, IsMain: true, IsActive: true},
	)
	seedFinalizedIncoming(t, d, "Fe-100", "LOT-1")

	var work api.BlendingWork
	code := doJSON(t, http.MethodPost, base+"/api/blending/works", token, api.CreateWorkRequest{
		ProductName:       "MIX-1",
		TargetTotalWeight: 100,
		Operator:          "park",
	}, &work)
	if code != http.StatusCreated || work.BatchLot == "" {
		t.Fatalf("unexpected create work: code=%d %+v", code, work)
	}

	var consume api.ConsumeMaterialResponse
	code = doJSON(t, http.MethodPost, base+"/api/blending/materials", token, api.ConsumeMaterialRequest{
		BlendingWorkID: work.ID,
		PowderName:     "Fe-100",
		MaterialLot:    "LOT-1",
		ActualWeight:   104,
	}, &consume)
	if code != http.StatusOK || consume.WeightDeviation != 4.0 || !consume.IsValid {
		t.Fatalf("unexpected consume: code=%d %+v", code, consume)
	}

	var errResp api.ErrorResponse
	code = doJSON(t, http.MethodPost, base+"/api/blending/materials", token, api.ConsumeMaterialRequest{
		BlendingWorkID: work.ID,
		PowderName:     "Fe-100",
		MaterialLot:    "LOT-1",
		ActualWeight:   110,
	}, &errResp)
	if code != http.StatusUnprocessableEntity || errResp.Deviation == nil || *errResp.Deviation != 10.0 {
		t.Fatalf("expected 422 with deviation, got %d %+v", code, errResp)
	}

	var backward api.BackwardTraceResponse
	code = doJSON(t, http.MethodGet, base+"/api/trace/backward/"+work.BatchLot, token, nil, &backward)
	if code != http.StatusOK || len(backward.Materials) != 1 {
		t.Fatalf("unexpected backward trace: code=%d %+v", code, backward)
	}
	if backward.Materials[0].Lots[0].IncomingInspection == nil {
		t.Error("expected incoming inspection to resolve")
	}

	var forward api.ForwardTraceResponse
	code = doJSON(t, http.MethodGet, base+"/api/trace/forward?powder=Fe-100&lot=LOT-1", token, nil, &forward)
	if code != http.StatusOK || len(forward.Batches) != 1 {
		t.Fatalf("unexpected forward trace: code=%d %+v", code, forward)
	}

	var search api.TraceSearchResponse
	code = doJSON(t, http.MethodGet, base+"/api/trace/search?q="+work.BatchLot, token, nil, &search)
	if code != http.StatusOK || search.Direction != "backward" {
		t.Fatalf("unexpected trace search: code=%d %+v", code, search)
	}
}

func seedFinalizedIncoming(t *testing.T, d *Daemon, powder, lot string) {
	t.Helper()
	now := time.Now().UTC()
	err := d.store.WithTx(context.Background(), func(tx *store.Tx) error {
		result := &store.InspectionResult{
			PowderName:     powder,
			LotNumber:      lot,
			InspectionType: store.InspectionDaily,
			InspectionTime: now,
			Category:       store.CategoryIncoming,
		}
		if err := tx.CreateResult(result); err != nil {
			return err
		}
		return tx.FinalizeResult(result.ID, store.VerdictPass, now)
	})
	if err != nil {
		t.Fatalf("seed incoming: %v", err)
	}
}
