package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/fraudscope/pkg/scoring"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

func TestMoney(t *testing.T) {
	assert.Equal(t, "88.35", Money(88.349621))
	assert.Equal(t, "0.00", Money(0))
	assert.Equal(t, "50000.00", Money(50000))
	assert.Equal(t, "0.17%", Percent(0.1727))
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Summary{
		Stats: scoring.Stats{Total: 1000, ActualFraud: 2, PredictedFraud: 3, ActualFraudRate: 0.2, PredictedFraudRate: 0.3, AvgAmount: 88.3},
		Quality: scoring.Quality{TruePositives: 1, FalsePositives: 2, FalseNegatives: 1,
			Precision: 100.0 / 3, Recall: 50, RecallApplicable: true},
	}))

	out := buf.String()
	assert.Contains(t, out, "Total transactions:  1000")
	assert.Contains(t, out, "2 (0.20%)")
	assert.Contains(t, out, "88.30")
	assert.Contains(t, out, "33.33%")
	assert.Contains(t, out, "50.00%")
}

func TestWriteTextRecallNotApplicable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Summary{Stats: scoring.Stats{Total: 5}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(last, "Recall:"))
	assert.True(t, strings.HasSuffix(last, "n/a"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Summary{Stats: scoring.Stats{Total: 7, AvgAmount: 1.5}}))

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(7), got["stats"]["total_transactions"])
	assert.Equal(t, false, got["quality"]["recall_applicable"])
}

func TestTopRisk(t *testing.T) {
	table := txn.NewTable(txn.Schema{}, []txn.Record{
		{Time: 1, RiskScore: 10},
		{Time: 2, RiskScore: 90},
		{Time: 3, RiskScore: 40},
		{Time: 4, RiskScore: 90},
	})

	top := TopRisk(table, 3)
	require.Len(t, top, 3)
	assert.Equal(t, []float64{2, 4, 3}, []float64{top[0].Time, top[1].Time, top[2].Time})
	assert.Equal(t, 1.0, table.Records[0].Time, "input order is untouched")

	assert.Len(t, TopRisk(table, 10), 4)
	assert.Len(t, TopRisk(table, -1), 4)
}

func TestWriteTop(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTop(&buf, []txn.Record{
		{Time: 406, Amount: 0, RiskScore: 100, PredictedFraud: 1, Class: 1},
		{Time: 472, Amount: 529, RiskScore: 55},
	}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "100")
	assert.Contains(t, lines[1], "fraud")
	assert.Contains(t, lines[2], "529.00")
}
