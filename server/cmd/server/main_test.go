package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/delaycast/delaycast/server/internal/config"
	"github.com/delaycast/delaycast/server/internal/predict"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// labelledCSV builds a dataset with a precomputed delay column.
func labelledCSV(rows map[string][2]int) string {
	var b strings.Builder
	b.WriteString("OPERA,TIPOVUELO,MES,delay\n")
	for op, counts := range rows {
		for i := 0; i < counts[0]; i++ {
			fmt.Fprintf(&b, "%s,N,4,1\n", op)
		}
		for i := 0; i < counts[1]; i++ {
			fmt.Fprintf(&b, "%s,N,4,0\n", op)
		}
	}
	return b.String()
}

func TestTrain(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", labelledCSV(map[string][2]int{"Sky Airline": {10, 90}, "Copa Air": {60, 40}}))
	oneClass := writeFile(t, dir, "one.csv", labelledCSV(map[string][2]int{"Sky Airline": {0, 50}}))
	badTime := writeFile(t, dir, "time.csv", "OPERA,TIPOVUELO,MES,Fecha-I,Fecha-O\nSky Airline,N,4,yesterday,2017-01-01 10:00:00\n")

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"ok", good, ""},
		{"missing file", filepath.Join(dir, "nope.csv"), "nope.csv"},
		{"single class", oneClass, "one.csv"},
		{"malformed timestamp", badTime, "time.csv"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := predict.New(predict.Options{})
			err := train(svc, config.DatasetConfig{Path: tc.path, TargetColumn: "delay"})
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("train: %v", err)
				}
				if !svc.Trained() {
					t.Error("service not trained after successful train")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("train: got %v, want error mentioning %q", err, tc.wantErr)
			}
			if svc.Trained() {
				t.Error("service trained despite error")
			}
		})
	}
}

// A startup whose training fails must return before the listener starts.
func TestRun_TrainingFailureStopsStartup(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", fmt.Sprintf(
		"server:\n  http_port: 1\ndataset:\n  path: %s\nlog:\n  level: error\n",
		filepath.Join(dir, "missing.csv")))

	err := run(cfgPath)
	if err == nil {
		t.Fatal("run: expected an error for a missing dataset")
	}
	if !strings.Contains(err.Error(), "missing.csv") {
		t.Errorf("run: error %q does not name the dataset", err)
	}
}
