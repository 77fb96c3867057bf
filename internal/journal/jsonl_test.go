package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"reserveScope/internal/model"
)

func testRecord(chainID uint64, n int) model.WriteRecord {
	return model.WriteRecord{
		ChainID:     chainID,
		Account:     "0x5555555555555555555555555555555555555555",
		Kind:        "transfer",
		TxHash:      fmt.Sprintf("0x%064d", n),
		State:       "confirmed",
		SubmittedAt: "2026-08-25T10:00:00Z",
		FinishedAt:  "2026-08-25T10:00:05Z",
	}
}

func TestJsonlRecordAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writes.jsonl")
	j := NewJsonlJournal(path)
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		if err := j.Record(ctx, testRecord(5003, n)); err != nil {
			t.Fatalf("record %d: %v", n, err)
		}
	}

	records, err := j.List(ctx, 5003, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].TxHash != fmt.Sprintf("0x%064d", 3) {
		t.Fatalf("newest record must come first: %s", records[0].TxHash)
	}
	if records[0].Kind != "transfer" || records[0].State != "confirmed" {
		t.Fatalf("record round trip mismatch: %+v", records[0])
	}
}

func TestJsonlListFiltersByNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writes.jsonl")
	j := NewJsonlJournal(path)
	ctx := context.Background()

	if err := j.Record(ctx, testRecord(5003, 1)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(ctx, testRecord(11155111, 2)); err != nil {
		t.Fatalf("record: %v", err)
	}

	records, err := j.List(ctx, 5003, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].ChainID != 5003 {
		t.Fatalf("filter mismatch: %+v", records)
	}

	all, err := j.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("zero chain id must match every network, got %d", len(all))
	}
}

func TestJsonlListLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writes.jsonl")
	j := NewJsonlJournal(path)
	ctx := context.Background()

	for n := 1; n <= 5; n++ {
		if err := j.Record(ctx, testRecord(5003, n)); err != nil {
			t.Fatalf("record %d: %v", n, err)
		}
	}

	records, err := j.List(ctx, 5003, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].TxHash != fmt.Sprintf("0x%064d", 5) || records[1].TxHash != fmt.Sprintf("0x%064d", 4) {
		t.Fatalf("limit must keep the newest records: %+v", records)
	}
}

func TestJsonlListMissingFile(t *testing.T) {
	j := NewJsonlJournal(filepath.Join(t.TempDir(), "absent.jsonl"))

	records, err := j.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list on missing file: %v", err)
	}
	if records != nil {
		t.Fatalf("missing file must yield no records")
	}
}

func TestJsonlCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "writes.jsonl")
	j := NewJsonlJournal(path)

	if err := j.Record(context.Background(), testRecord(5003, 1)); err != nil {
		t.Fatalf("record into nested path: %v", err)
	}
	records, err := j.List(context.Background(), 0, 0)
	if err != nil || len(records) != 1 {
		t.Fatalf("round trip through nested path: %v %d", err, len(records))
	}
}

func TestJsonlFailureReasonPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writes.jsonl")
	j := NewJsonlJournal(path)
	ctx := context.Background()

	rec := testRecord(5003, 1)
	rec.State = "failed"
	rec.Reason = "execution reverted: ERC20: transfer amount exceeds balance"
	if err := j.Record(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	records, err := j.List(ctx, 5003, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if records[0].Reason != rec.Reason {
		t.Fatalf("reason mismatch: %q", records[0].Reason)
	}
}
