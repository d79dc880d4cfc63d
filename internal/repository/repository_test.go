package repository

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crmkit/dispatchd/internal/db"
	"github.com/crmkit/dispatchd/internal/models"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	for _, m := range db.Migrations() {
		if _, err := conn.Exec(m); err != nil {
			t.Fatalf("migration failed: %v", err)
		}
	}

	tokens := NewTokenRepository(conn)
	for _, tenant := range []string{"tenant-1", "tenant-2"} {
		if err := tokens.CreateTenant(&models.Tenant{ID: tenant, Name: tenant}); err != nil {
			t.Fatalf("failed to create tenant: %v", err)
		}
	}
	return conn
}

func TestCampaignTenantScoping(t *testing.T) {
	conn := setupDB(t)
	repo := NewCampaignRepository(conn)

	c := &models.Campaign{
		TenantID:        "tenant-1",
		Name:            "Scoped",
		Channel:         models.ChannelEmail,
		RecipientSource: models.SourceManual,
		Status:          models.CampaignStatusDraft,
	}
	if err := repo.Create(c); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetByID("tenant-1", c.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.Name != "Scoped" {
		t.Fatalf("got = %+v, want campaign Scoped", got)
	}

	other, err := repo.GetByID("tenant-2", c.ID)
	if err != nil {
		t.Fatalf("cross-tenant get failed: %v", err)
	}
	if other != nil {
		t.Errorf("cross-tenant get returned %+v, want nil", other)
	}

	// Delete is scoped too.
	if err := repo.Delete("tenant-2", c.ID); err != nil {
		t.Fatalf("cross-tenant delete failed: %v", err)
	}
	got, _ = repo.GetByID("tenant-1", c.ID)
	if got == nil {
		t.Error("campaign deleted by the wrong tenant")
	}
}

func TestCampaignListFilter(t *testing.T) {
	conn := setupDB(t)
	repo := NewCampaignRepository(conn)

	for _, status := range []string{models.CampaignStatusDraft, models.CampaignStatusDraft, models.CampaignStatusSent} {
		c := &models.Campaign{
			TenantID:        "tenant-1",
			Name:            "c",
			Channel:         models.ChannelEmail,
			RecipientSource: models.SourceManual,
			Status:          status,
		}
		if err := repo.Create(c); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	all, err := repo.List("tenant-1", models.CampaignListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("list returned %d campaigns, want 3", len(all))
	}

	drafts, err := repo.List("tenant-1", models.CampaignListFilter{Status: models.CampaignStatusDraft})
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(drafts) != 2 {
		t.Errorf("draft list returned %d campaigns, want 2", len(drafts))
	}

	none, err := repo.List("tenant-2", models.CampaignListFilter{})
	if err != nil {
		t.Fatalf("other tenant list failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("other tenant sees %d campaigns, want 0", len(none))
	}
}

func TestMarkSentOnlyOnce(t *testing.T) {
	conn := setupDB(t)
	repo := NewCampaignRepository(conn)

	c := &models.Campaign{
		TenantID:        "tenant-1",
		Name:            "Once",
		Channel:         models.ChannelEmail,
		RecipientSource: models.SourceManual,
		Status:          models.CampaignStatusDraft,
	}
	if err := repo.Create(c); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.MarkSent("tenant-1", c.ID, first); err != nil {
		t.Fatalf("first MarkSent failed: %v", err)
	}
	if err := repo.MarkSent("tenant-1", c.ID, first.Add(time.Hour)); err != nil {
		t.Fatalf("second MarkSent failed: %v", err)
	}

	got, err := repo.GetByID("tenant-1", c.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.CampaignStatusSent {
		t.Errorf("status = %q, want sent", got.Status)
	}
	if got.SentAt == nil || !got.SentAt.Equal(first) {
		t.Errorf("SentAt = %v, want %v", got.SentAt, first)
	}
}

func TestCredentialGetActive(t *testing.T) {
	conn := setupDB(t)
	repo := NewCredentialRepository(conn)

	got, err := repo.GetActive("tenant-1")
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if got != nil {
		t.Fatalf("GetActive on empty tenant = %+v, want nil", got)
	}

	inactive := &models.Credential{
		TenantID: "tenant-1", Provider: "gmail", FromAddress: "old@x.com",
		EncryptedSecret: "enc", Status: models.CredentialStatusInactive,
	}
	if err := repo.Create(inactive); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	active1 := &models.Credential{
		TenantID: "tenant-1", Provider: "gmail", FromAddress: "first@x.com",
		EncryptedSecret: "enc", Status: models.CredentialStatusActive,
	}
	if err := repo.Create(active1); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	active2 := &models.Credential{
		TenantID: "tenant-1", Provider: "yahoo", FromAddress: "second@x.com",
		EncryptedSecret: "enc", Status: models.CredentialStatusActive,
	}
	if err := repo.Create(active2); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err = repo.GetActive("tenant-1")
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if got == nil || got.ID != active1.ID {
		t.Errorf("GetActive = %+v, want oldest active credential %s", got, active1.ID)
	}

	// Deactivating the oldest promotes the next one.
	if err := repo.UpdateStatus("tenant-1", active1.ID, models.CredentialStatusInactive); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, err = repo.GetActive("tenant-1")
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if got == nil || got.ID != active2.ID {
		t.Errorf("GetActive after deactivation = %+v, want %s", got, active2.ID)
	}
}

func TestDeliveryLogListAndStats(t *testing.T) {
	conn := setupDB(t)
	campaigns := NewCampaignRepository(conn)
	logs := NewDeliveryLogRepository(conn)

	c := &models.Campaign{
		TenantID:        "tenant-1",
		Name:            "Logged",
		Channel:         models.ChannelEmail,
		RecipientSource: models.SourceManual,
		Status:          models.CampaignStatusDraft,
	}
	if err := campaigns.Create(c); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	now := time.Now()
	entries := []models.DeliveryLogEntry{
		{TenantID: "tenant-1", CampaignID: c.ID, Recipient: "a@x.com", Status: models.DeliveryStatusSent, SentAt: &now},
		{TenantID: "tenant-1", CampaignID: c.ID, Recipient: "b@x.com", Status: models.DeliveryStatusSent, SentAt: &now},
		{TenantID: "tenant-1", CampaignID: c.ID, Recipient: "c@x.com", Status: models.DeliveryStatusFailed, Error: "550 user unknown"},
	}
	for i := range entries {
		if err := logs.Create(&entries[i]); err != nil {
			t.Fatalf("log create failed: %v", err)
		}
	}

	failed, err := logs.List("tenant-1", models.DeliveryLogFilter{CampaignID: c.ID, Status: models.DeliveryStatusFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Recipient != "c@x.com" {
		t.Errorf("failed list = %+v, want single c@x.com entry", failed)
	}
	if failed[0].Error != "550 user unknown" {
		t.Errorf("Error = %q, want 550 user unknown", failed[0].Error)
	}

	stats, err := logs.Stats("tenant-1", c.ID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Sent != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want total 3, sent 2, failed 1", stats)
	}

	// Other tenants see nothing.
	other, err := logs.List("tenant-2", models.DeliveryLogFilter{CampaignID: c.ID})
	if err != nil {
		t.Fatalf("other tenant list failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other tenant sees %d entries, want 0", len(other))
	}
}
