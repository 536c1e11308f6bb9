package models

import "testing"

func TestLocalizedTextGet(t *testing.T) {
	text := LocalizedText{"de": "Ertrag", "en": "Revenue"}

	if got := text.Get("en"); got != "Revenue" {
		t.Errorf("Expected 'Revenue', got '%s'", got)
	}
	// Missing languages fall back to the first available translation.
	if got := text.Get("fr"); got != "Ertrag" {
		t.Errorf("Expected fallback 'Ertrag', got '%s'", got)
	}
	if got := (LocalizedText{}).Get("de"); got != "" {
		t.Errorf("Expected empty string from empty map, got '%s'", got)
	}
}

func TestLocalizedTextIsEmpty(t *testing.T) {
	if !(LocalizedText{}).IsEmpty() {
		t.Errorf("Expected empty map to be empty")
	}
	if !(LocalizedText{"de": ""}).IsEmpty() {
		t.Errorf("Expected map with only blank values to be empty")
	}
	if (LocalizedText{"de": "Konto"}).IsEmpty() {
		t.Errorf("Expected non-blank map to not be empty")
	}
}

func TestLocalizedTextClone(t *testing.T) {
	orig := LocalizedText{"de": "Konto"}
	clone := orig.Clone()
	clone["de"] = "changed"
	if orig["de"] != "Konto" {
		t.Errorf("Expected clone to be independent of the original")
	}
}

func TestInstanceState(t *testing.T) {
	inst := &Instance{}
	if got := inst.State(); got != SyncStateClean {
		t.Errorf("Expected clean state, got '%s'", got)
	}

	inst.SyncToAccounting = true
	if got := inst.State(); got != SyncStateDirty {
		t.Errorf("Expected dirty state, got '%s'", got)
	}

	inst.Message = "upload failed"
	if got := inst.State(); got != SyncStateError {
		t.Errorf("Expected error state, got '%s'", got)
	}
}

func TestIsCountryCode(t *testing.T) {
	if !IsCountryCode("CHE") {
		t.Errorf("Expected CHE to be a known country code")
	}
	if IsCountryCode("XYZ") {
		t.Errorf("Expected XYZ to be unknown")
	}
}
