package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dropshop/internal/domain"
	"dropshop/internal/services"
)

func postSave(t *testing.T, s *session, body string) *http.Response {
	t.Helper()
	return s.do(t, "POST", "/api/vault/save", body)
}

func TestVaultSaveRequiresEligibility(t *testing.T) {
	app, _ := newTestApp(t)
	s := &session{app: app}

	// Product never seen live: the save is refused at the boundary.
	resp := postSave(t, s, `{"productId":"tee-black","email":"fan@example.com"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("ineligible save: want 409, got %d", resp.StatusCode)
	}

	// Purchasable right now: still refused.
	adminPost(t, app, "/api/admin/drop", `{"startAt":"now","durationMinutes":30,"quantities":{"tee-black":2}}`)
	resp = postSave(t, s, `{"productId":"tee-black","email":"fan@example.com"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("purchasable save: want 409, got %d", resp.StatusCode)
	}
}

func TestVaultSaveValidatesInput(t *testing.T) {
	app, _ := newTestApp(t)
	s := &session{app: app}

	resp := postSave(t, s, `{"productId":"tee-black","email":"not-an-email"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad email: want 400, got %d", resp.StatusCode)
	}
	resp = postSave(t, s, `{"productId":"","email":"fan@example.com"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing product: want 400, got %d", resp.StatusCode)
	}
}

func TestVaultSaveFlowThroughRelease(t *testing.T) {
	app, deps := newTestApp(t)

	// Sell the tee out so it becomes vault-eligible.
	adminPost(t, app, "/api/admin/drop", `{"startAt":"now","durationMinutes":30,"quantities":{"tee-black":1}}`)
	buyer := &session{app: app}
	buyer.do(t, "POST", "/api/cart", `{"productId":"tee-black","qty":1}`)
	buyer.do(t, "POST", "/api/checkout", "")
	adminPost(t, app, "/api/admin/drop/end", "{}")

	emails := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"}
	var last services.AddSaveResult
	for _, email := range emails {
		s := &session{app: app}
		resp := postSave(t, s, `{"productId":"tee-black","email":"`+email+`"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("save %s: want 200, got %d", email, resp.StatusCode)
		}
		decodeJSON(t, resp, &last)
	}
	if !last.ReleaseTriggered {
		t.Fatalf("fifth save must trigger a release: %+v", last)
	}

	// The release is a fresh live vault drop.
	d := deps.Drops.Current()
	if d == nil || d.Code != domain.DropVault || d.Status != domain.DropLive {
		t.Fatalf("want live vault drop, got %+v", d)
	}

	// Admin snapshot carries the release.
	req := httptest.NewRequest("GET", "/api/admin/vault", nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var snap map[string]services.VaultEntry
	decodeJSON(t, resp, &snap)
	entry := snap["tee-black"]
	if entry.ActiveRelease == nil || entry.ActiveRelease.Status != domain.ReleaseLive {
		t.Fatalf("snapshot missing live release: %+v", entry)
	}
	if entry.SaverCount != 0 {
		t.Fatalf("savers must be cleared post-release: %+v", entry)
	}
}

func TestVaultReadyListsSoldOutProducts(t *testing.T) {
	app, deps := newTestApp(t)

	adminPost(t, app, "/api/admin/drop", `{"startAt":"now","durationMinutes":30,"quantities":{"tee-black":1}}`)
	deps.Drops.Reserve("tee-black", 1)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/vault/ready", nil))
	if err != nil {
		t.Fatal(err)
	}
	var prods []domain.Product
	decodeJSON(t, resp, &prods)
	found := false
	for _, p := range prods {
		if p.ID == "tee-black" {
			found = true
		}
		if p.ID == "hood-ash" {
			t.Fatal("product never live must not be vault-ready")
		}
	}
	if !found {
		t.Fatalf("sold-out tee should be vault-ready: %+v", prods)
	}
}
