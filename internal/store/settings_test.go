package store

import (
	"context"
	"testing"

	"github.com/ralpholazo24/turi/internal/model"
)

func TestSettingsGetSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, ok, err := f.settings.Get(ctx, f.group.ID, model.SettingLocale); err != nil || ok {
		t.Fatalf("get unset = %v, %v; want not set", ok, err)
	}

	if err := f.settings.Set(ctx, f.group.ID, model.SettingLocale, "es"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := f.settings.Set(ctx, f.group.ID, model.SettingLocale, "en"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := f.settings.Get(ctx, f.group.ID, model.SettingLocale)
	if err != nil || !ok || v != "en" {
		t.Errorf("get = %q, %v, %v; want en", v, ok, err)
	}

	all, err := f.settings.GetAll(ctx, f.group.ID)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len(all) = %d, want 1", len(all))
	}
}

func TestSettingsGetInt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.settings.GetInt(ctx, f.group.ID, model.SettingReminderMinutes, 30)
	if err != nil || n != 30 {
		t.Errorf("default = %d, %v; want 30", n, err)
	}

	if err := f.settings.Set(ctx, f.group.ID, model.SettingReminderMinutes, "45"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if n, _ := f.settings.GetInt(ctx, f.group.ID, model.SettingReminderMinutes, 30); n != 45 {
		t.Errorf("value = %d, want 45", n)
	}

	if err := f.settings.Set(ctx, f.group.ID, model.SettingReminderMinutes, "soon"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if n, _ := f.settings.GetInt(ctx, f.group.ID, model.SettingReminderMinutes, 30); n != 30 {
		t.Errorf("malformed value = %d, want default 30", n)
	}
}
