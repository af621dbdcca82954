package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/healixhq/healix/internal/auth"
	"github.com/healixhq/healix/internal/database"
	"github.com/healixhq/healix/internal/family"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/storage"
	"github.com/healixhq/healix/internal/store"
	ws "github.com/healixhq/healix/internal/websocket"
)

type familyFixture struct {
	handler  *FamilyHandler
	profiles *store.ProfileStore
	requests *store.PaymentRequestStore
}

func setupFamilyHandler(t *testing.T) *familyFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := store.NewProfileStore(db)
	requests := store.NewPaymentRequestStore(db)
	resolver := family.NewResolver(profiles, slog.Default())
	h := NewFamilyHandler(resolver, profiles, requests, storage.New(storage.Config{}), ws.NewHub(slog.Default()), slog.Default())
	return &familyFixture{handler: h, profiles: profiles, requests: requests}
}

func authedRequest(method, target, body, userID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: userID}))
}

func TestFamilyGetEmpty(t *testing.T) {
	f := setupFamilyHandler(t)

	rec := httptest.NewRecorder()
	f.handler.Get(rec, authedRequest("GET", "/api/family", "", "nobody"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for empty family", rec.Code)
	}

	var view struct {
		Manager    *json.RawMessage  `json:"manager"`
		Dependents []json.RawMessage `json:"dependents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Manager != nil {
		t.Error("expected no manager")
	}
	if len(view.Dependents) != 0 {
		t.Error("expected no dependents")
	}
}

func TestFamilyGetInheritsEntitlement(t *testing.T) {
	f := setupFamilyHandler(t)

	mgr, _ := f.profiles.CreateManager("user-1", "Alice")
	f.profiles.CreateDependent(mgr.ID, "Bob")
	end := time.Now().Add(24 * time.Hour)
	f.profiles.UpdateSubscription(mgr.ID, model.StatusActive, model.TierPro, &end)

	rec := httptest.NewRecorder()
	f.handler.Get(rec, authedRequest("GET", "/api/family", "", mgr.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var view struct {
		Manager *struct {
			Entitled bool `json:"entitled"`
		} `json:"manager"`
		Dependents []struct {
			SubscriptionStatus string `json:"subscription_status"`
			Entitled           bool   `json:"entitled"`
		} `json:"dependents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Manager == nil || !view.Manager.Entitled {
		t.Error("expected entitled manager")
	}
	if len(view.Dependents) != 1 {
		t.Fatalf("dependents = %d, want 1", len(view.Dependents))
	}
	if view.Dependents[0].SubscriptionStatus != "active" {
		t.Errorf("dependent status = %q, want inherited active", view.Dependents[0].SubscriptionStatus)
	}
	if !view.Dependents[0].Entitled {
		t.Error("expected dependent entitled through inheritance")
	}
}

func TestCreateDependentRequiresEntitlement(t *testing.T) {
	f := setupFamilyHandler(t)

	mgr, _ := f.profiles.CreateManager("user-1", "Alice")

	rec := httptest.NewRecorder()
	f.handler.CreateDependent(rec, authedRequest("POST", "/api/family/members", `{"name":"Bob"}`, mgr.ID))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 without subscription", rec.Code)
	}
}

func TestCreateDependentCapacity(t *testing.T) {
	f := setupFamilyHandler(t)

	mgr, _ := f.profiles.CreateManager("user-1", "Alice")
	end := time.Now().Add(24 * time.Hour)
	f.profiles.UpdateSubscription(mgr.ID, model.StatusActive, model.TierStandard, &end)

	// Approved plan with one dependent slot.
	pr, _ := f.requests.Create(mgr.ID, 600, model.TierStandard, "", model.RenewalMetadata{SubCount: 1})
	f.requests.Approve(pr.ID, "admin-1", end)

	rec := httptest.NewRecorder()
	f.handler.CreateDependent(rec, authedRequest("POST", "/api/family/members", `{"name":"Bob"}`, mgr.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	f.handler.CreateDependent(rec, authedRequest("POST", "/api/family/members", `{"name":"Cara"}`, mgr.ID))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 when capacity is full", rec.Code)
	}
}

func TestDeleteManagerForbidden(t *testing.T) {
	f := setupFamilyHandler(t)

	mgr, _ := f.profiles.CreateManager("user-1", "Alice")

	req := authedRequest("DELETE", "/api/family/members/"+mgr.ID, "", mgr.ID)
	req.SetPathValue("id", mgr.ID)
	rec := httptest.NewRecorder()
	f.handler.Delete(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 deleting primary profile", rec.Code)
	}
}

func TestFamilyMemberScoping(t *testing.T) {
	f := setupFamilyHandler(t)

	alice, _ := f.profiles.CreateManager("user-1", "Alice")
	bob, _ := f.profiles.CreateManager("user-2", "Bob")
	bobDep, _ := f.profiles.CreateDependent(bob.ID, "Child")

	// Alice cannot touch Bob's dependent.
	req := authedRequest("DELETE", "/api/family/members/"+bobDep.ID, "", alice.ID)
	req.SetPathValue("id", bobDep.ID)
	rec := httptest.NewRecorder()
	f.handler.Delete(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for other family's member", rec.Code)
	}
}

func TestUploadAvatarRejectsOversizedUpload(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := store.NewProfileStore(db)
	// Storage must look configured so the size guard is what rejects the
	// request; the guard fires before any S3 call.
	objects := storage.New(storage.Config{Bucket: "healix-test", AccessKey: "k", SecretKey: "s"})
	h := NewFamilyHandler(family.NewResolver(profiles, slog.Default()), profiles,
		store.NewPaymentRequestStore(db), objects, ws.NewHub(slog.Default()), slog.Default())

	mgr, _ := profiles.CreateManager("user-1", "Alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("avatar", "avatar.png")
	fw.Write(bytes.Repeat([]byte("x"), maxAvatarSize+1))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/family/members/"+mgr.ID+"/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("id", mgr.ID)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: mgr.ID}))
	rec := httptest.NewRecorder()
	h.UploadAvatar(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413 for oversized avatar", rec.Code)
	}
}
