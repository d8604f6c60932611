package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"drainReversal/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	sink := NewJsonlStorage(path)

	first := []model.LogRecord{{ChainID: 1, BlockNumber: 1, Method: "restoreBalances"}}
	second := []model.LogRecord{{ChainID: 1, BlockNumber: 2, Method: "initialize"}}
	if err := sink.PutLogBatch(context.Background(), first); err != nil {
		t.Fatalf("put first batch: %v", err)
	}
	if err := (Multi{sink, nil}).PutLogBatch(context.Background(), second); err != nil {
		t.Fatalf("put second batch: %v", err)
	}
	if err := sink.PutLogBatch(context.Background(), nil); err != nil {
		t.Fatalf("put empty batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var got []model.LogRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.LogRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Method != "restoreBalances" || got[1].BlockNumber != 2 {
		t.Fatalf("records mismatch: %+v", got)
	}
}

func TestJsonlStorageTypedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typed.jsonl")
	sink := NewJsonlStorage(path)
	err := sink.PutTypedEvents([]model.TypedEvent{{BlockNumber: 3, EventName: "Redeemed"}})
	if err != nil {
		t.Fatalf("put typed events: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var ev model.TypedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode typed event: %v", err)
	}
	if ev.EventName != "Redeemed" {
		t.Fatalf("event name mismatch: %s", ev.EventName)
	}
}
