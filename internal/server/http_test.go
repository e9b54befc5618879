package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/observability"
	"StrappedIndexer/internal/query"
	"StrappedIndexer/internal/snapshot"
	"StrappedIndexer/internal/testutil"
)

// fakeApp answers queries from fixed fixtures, standing in for the
// coordinator.
type fakeApp struct {
	overview   *query.OverviewReply
	accounts   map[event.Identity]*query.AccountReply
	historical map[uint32]*snapshot.HistoricalSnapshot
	straps     []snapshot.StrapMetadata
}

func (f *fakeApp) Submit(ctx context.Context, q query.Query) error {
	switch r := q.(type) {
	case query.LatestOverview:
		r.Reply <- f.overview
	case query.LatestAccount:
		r.Reply <- f.accounts[r.Identity]
	case query.HistoricalAccount:
		r.Reply <- f.accounts[r.Identity]
	case query.HistoricalGame:
		r.Reply <- f.historical[r.GameID]
	case query.AllKnownStraps:
		r.Reply <- f.straps
	}
	return nil
}

func newTestServer(app *fakeApp) (*Server, *observability.HealthChecker) {
	health := observability.NewHealthChecker()
	return New(app, health, testutil.NopLogger(), nil), health
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestLatestOverviewOK(t *testing.T) {
	o := snapshot.NewOverview()
	o.GameID = 4
	o.PotSize = 777
	srv, _ := newTestServer(&fakeApp{overview: &query.OverviewReply{Snapshot: o, Height: 30}})

	rec := get(t, srv, "/snapshot/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Snapshot    snapshot.OverviewSnapshot `json:"snapshot"`
		BlockHeight uint32                    `json:"block_height"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.BlockHeight != 30 || body.Snapshot.GameID != 4 || body.Snapshot.PotSize != 777 {
		t.Errorf("body = %+v", body)
	}
}

func TestLatestOverviewNotFound(t *testing.T) {
	srv, _ := newTestServer(&fakeApp{})
	if rec := get(t, srv, "/snapshot/latest"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAccountNormalized(t *testing.T) {
	acc := snapshot.NewAccount()
	acc.TotalChipBet = 10
	acc.AppendBet(event.RollNine, snapshot.AccountBet{Kind: snapshot.BetChip, Amount: 10})
	srv, _ := newTestServer(&fakeApp{
		accounts: map[event.Identity]*query.AccountReply{
			"alice": {Snapshot: acc, Height: 12},
		},
	})

	rec := get(t, srv, "/account/alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Snapshot    snapshot.AccountSnapshot `json:"snapshot"`
		BlockHeight uint32                   `json:"block_height"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Snapshot.PerRollBets) != event.NumRolls {
		t.Errorf("per-roll grid has %d slots, want %d", len(body.Snapshot.PerRollBets), event.NumRolls)
	}
	if body.BlockHeight != 12 {
		t.Errorf("block_height = %d, want 12", body.BlockHeight)
	}
}

func TestAccountNotFound(t *testing.T) {
	srv, _ := newTestServer(&fakeApp{})
	if rec := get(t, srv, "/account/ghost"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHistoricalAccountBadGameID(t *testing.T) {
	srv, _ := newTestServer(&fakeApp{})
	if rec := get(t, srv, "/account/alice/notanumber"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHistoricalGame(t *testing.T) {
	archive := snapshot.NewHistorical(9, []event.Roll{event.RollTen}, nil, nil)
	srv, _ := newTestServer(&fakeApp{
		historical: map[uint32]*snapshot.HistoricalSnapshot{9: &archive},
	})

	rec := get(t, srv, "/historical/9")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got snapshot.HistoricalSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.GameID != 9 || len(got.Rolls) != 1 {
		t.Errorf("body = %+v", got)
	}

	if rec := get(t, srv, "/historical/8"); rec.Code != http.StatusNotFound {
		t.Errorf("missing game status = %d, want 404", rec.Code)
	}
}

func TestStrapsEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(&fakeApp{})
	rec := get(t, srv, "/straps")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestStrapsListing(t *testing.T) {
	strap := testutil.Strap(1, event.KindHat, event.ModLucky)
	srv, _ := newTestServer(&fakeApp{
		straps: []snapshot.StrapMetadata{{AssetID: strap.AssetID(testutil.ContractID(2)), Strap: strap}},
	})
	rec := get(t, srv, "/straps")
	var got []snapshot.StrapMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 1 || got[0].Strap != strap {
		t.Errorf("body = %+v", got)
	}
}

func TestReadiness(t *testing.T) {
	srv, health := newTestServer(&fakeApp{})

	if rec := get(t, srv, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready status = %d, want 503", rec.Code)
	}
	health.SetReady(true)
	if rec := get(t, srv, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}
	if rec := get(t, srv, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d, want 200", rec.Code)
	}
}
