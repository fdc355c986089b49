package history

import (
	"testing"

	"github.com/crosswire/intercom/internal/db"
	"github.com/crosswire/intercom/internal/models"
	"github.com/crosswire/intercom/internal/protocol"
	"gorm.io/gorm"
)

func openTestLog(t *testing.T, labelFor LabelFunc) (*Log, *gorm.DB) {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	log, err := NewLog(LogOpts{DB: gdb, LabelFor: labelFor})
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	return log, gdb
}

func TestLog_RecordOutgoing(t *testing.T) {
	log, _ := openTestLog(t, nil)

	if err := log.RecordOutgoing("c1", protocol.CallTarget{Position: "EDDF_S_TWR"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := log.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Direction != models.DirectionOut {
		t.Errorf("direction = %q, want out", e.Direction)
	}
	if e.Label != "EDDF_S_TWR" {
		t.Errorf("label = %q, want position id", e.Label)
	}
}

func TestLog_RecordIncomingLabelPriority(t *testing.T) {
	labels := map[protocol.StationID][]string{
		"EDDF_TWR": {"Frankfurt", "Tower"},
	}
	log, _ := openTestLog(t, func(id protocol.StationID) []string { return labels[id] })

	cases := []struct {
		name   string
		source protocol.CallSource
		want   string
	}{
		{
			name:   "configured station label wins",
			source: protocol.CallSource{ClientID: "100", PositionID: "EDDF_S_TWR", StationID: "EDDF_TWR"},
			want:   "Frankfurt Tower",
		},
		{
			name:   "unlabelled station falls back to position",
			source: protocol.CallSource{ClientID: "100", PositionID: "EDDF_S_GND", StationID: "EDDF_GND"},
			want:   "EDDF_S_GND",
		},
		{
			name:   "no station or position falls back to client",
			source: protocol.CallSource{ClientID: "100"},
			want:   "100",
		},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := protocol.CallID(rune('a' + i))
			if err := log.RecordIncoming(id, tc.source); err != nil {
				t.Fatalf("record: %v", err)
			}
			entries, err := log.Entries()
			if err != nil {
				t.Fatalf("entries: %v", err)
			}
			e := entries[len(entries)-1]
			if e.Label != tc.want {
				t.Errorf("label = %q, want %q", e.Label, tc.want)
			}
			if e.Direction != models.DirectionIn {
				t.Errorf("direction = %q, want in", e.Direction)
			}
		})
	}
}

func TestLog_DuplicateCallIDIsNoOp(t *testing.T) {
	log, _ := openTestLog(t, nil)
	if err := log.RecordIncoming("c1", protocol.CallSource{ClientID: "100"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := log.RecordIncoming("c1", protocol.CallSource{ClientID: "200"}); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	entries, _ := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].RelatedClientID != "100" {
		t.Error("re-recording must not overwrite the original entry")
	}
}

func TestLog_PatchRelatedClient(t *testing.T) {
	log, _ := openTestLog(t, nil)
	if err := log.RecordOutgoing("c1", protocol.CallTarget{Station: "EDDF_TWR"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := log.PatchRelatedClient("c1", "peer-7"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	entries, _ := log.Entries()
	if entries[0].RelatedClientID != "peer-7" {
		t.Errorf("related client = %q, want peer-7", entries[0].RelatedClientID)
	}
}

func TestLog_PatchUnknownIDDoesNotCreate(t *testing.T) {
	log, _ := openTestLog(t, nil)
	if err := log.PatchRelatedClient("ghost", "peer"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	n, err := log.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no entries, got %d", n)
	}
}

func TestLog_OrderIsRecordOrder(t *testing.T) {
	log, _ := openTestLog(t, nil)
	for _, id := range []protocol.CallID{"c1", "c2", "c3"} {
		if err := log.RecordIncoming(id, protocol.CallSource{ClientID: "100"}); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}
	entries, _ := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"c1", "c2", "c3"} {
		if entries[i].CallID != want {
			t.Errorf("entry %d = %s, want %s", i, entries[i].CallID, want)
		}
	}
}

func TestLog_Clear(t *testing.T) {
	log, _ := openTestLog(t, nil)
	if err := log.RecordIncoming("c1", protocol.CallSource{ClientID: "100"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := log.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	n, _ := log.Count()
	if n != 0 {
		t.Errorf("expected empty log, got %d entries", n)
	}
}
