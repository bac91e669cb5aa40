package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaycast/delaycast/server/internal/client"
)

// writeDataset writes a CSV without a label column, so labels are derived
// from the departure timestamps.
func writeDataset(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Fecha-I,Fecha-O,OPERA,TIPOVUELO,MES\n")
	row := func(op, tv string, mes int, late bool, n int) {
		actual := "2017-01-01 23:35:00"
		if late {
			actual = "2017-01-01 23:55:00"
		}
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "2017-01-01 23:30:00,%s,%s,%s,%d\n", actual, op, tv, mes)
		}
	}
	row("Grupo LATAM", "I", 12, true, 80)
	row("Grupo LATAM", "I", 12, false, 20)
	row("Sky Airline", "N", 4, true, 45)
	row("Sky Airline", "N", 4, false, 855)

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTrain_PrintsReport(t *testing.T) {
	out, err := execute(t, "train", "--data", writeDataset(t), "--holdout", "0.25")
	require.NoError(t, err)

	assert.Contains(t, out, "samples:    1000")
	assert.Contains(t, out, "delays:     125 (12.5%)")
	assert.Contains(t, out, "operators:  2")
	assert.Contains(t, out, "holdout (250 rows")
	assert.Contains(t, out, "OPERA_Grupo LATAM")
	assert.Contains(t, out, "intercept")
}

func TestTrain_JSON(t *testing.T) {
	out, err := execute(t, "train", "--data", writeDataset(t), "--holdout", "0", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"trained": true`)
	assert.NotContains(t, out, `"holdout"`)
}

func TestTrain_MissingFile(t *testing.T) {
	_, err := execute(t, "train", "--data", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestPredict_AgainstServer(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body) //nolint:errcheck
		body = buf.String()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predict":[1]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	out, err := execute(t, "predict", "--endpoint", srv.URL, "--opera", "Grupo LATAM", "--tipovuelo", "I", "--mes", "12")
	require.NoError(t, err)
	assert.Equal(t, "Grupo LATAM I month 12: delayed\n", out)
	assert.JSONEq(t, `{"flights":[{"OPERA":"Grupo LATAM","TIPOVUELO":"I","MES":12}]}`, body)
}

func TestPredict_ServerRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Invalid OPERA"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := execute(t, "predict", "--endpoint", srv.URL, "--opera", "Nope", "--mes", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OPERA")
}

func TestPredict_RequiresFlags(t *testing.T) {
	_, err := execute(t, "predict", "--endpoint", "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	printStatus(&out, client.Status{
		Trained:    true,
		Flights:    200,
		Delays:     50,
		Requests:   map[string]float64{"rejected": 2, "ok": 10},
		Rejections: map[string]float64{"MES": 2},
	})
	s := out.String()
	assert.Contains(t, s, "flights:    200 (25.0% delayed)")
	assert.Less(t, strings.Index(s, "ok"), strings.Index(s, "rejected"))
	assert.Contains(t, s, "MES")
}
