package console

import (
	"testing"

	"github.com/crosswire/intercom/internal/protocol"
)

func TestDirectory_LookupFallback(t *testing.T) {
	d := NewDirectory()
	c := d.Lookup("1000042")
	if c.ID != "1000042" {
		t.Errorf("fallback id = %q, want queried id", c.ID)
	}
	if c.DisplayName != "1000042" {
		t.Errorf("fallback display name = %q, want queried id", c.DisplayName)
	}
	if c.Frequency != "" {
		t.Errorf("fallback frequency = %q, want empty", c.Frequency)
	}
}

func TestDirectory_UpsertKeepsOneEntryPerID(t *testing.T) {
	d := NewDirectory()
	d.Upsert(protocol.ClientInfo{ID: "1", DisplayName: "Alpha"})
	d.Upsert(protocol.ClientInfo{ID: "2", DisplayName: "Bravo"})
	d.Upsert(protocol.ClientInfo{ID: "1", DisplayName: "Alpha 2"})

	list := d.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(list))
	}
	if list[0].ID != "2" {
		t.Errorf("expected re-upserted entry to move to the back, front is %s", list[0].ID)
	}
	if got := d.Lookup("1").DisplayName; got != "Alpha 2" {
		t.Errorf("expected newest entry to win, got %q", got)
	}
}

func TestDirectory_ReplaceAllAndRemove(t *testing.T) {
	d := NewDirectory()
	d.Upsert(protocol.ClientInfo{ID: "old"})
	d.ReplaceAll([]protocol.ClientInfo{{ID: "1"}, {ID: "2"}})

	if d.Len() != 2 {
		t.Fatalf("expected 2 clients after replace, got %d", d.Len())
	}
	if got := d.Lookup("old").DisplayName; got != "old" {
		t.Error("expected replaced entry to fall back to raw id")
	}

	d.Remove("1")
	if d.Len() != 1 {
		t.Errorf("expected 1 client after remove, got %d", d.Len())
	}
	d.Remove("ghost")
	if d.Len() != 1 {
		t.Error("removing an unknown id must be a no-op")
	}
}

func TestDirectory_Clear(t *testing.T) {
	d := NewDirectory()
	d.ReplaceAll([]protocol.ClientInfo{{ID: "1"}})
	d.Clear()
	if d.Len() != 0 {
		t.Errorf("expected empty directory, got %d entries", d.Len())
	}
}
