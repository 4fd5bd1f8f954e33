package csv

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/fraudscope/pkg/txn"
)

func smallSchema() txn.Schema {
	return txn.Schema{
		TimeColumn:   "Time",
		AmountColumn: "Amount",
		LabelColumn:  "Class",
		Features:     []string{"V1", "V2"},
	}
}

func TestReadColumnsByName(t *testing.T) {
	// Column order differs from the feature layout, as in creditcard.csv.
	data := `"Time","V1","V2","Amount","Class"
0,-1.5,0.25,149.62,"0"
1,1.19,-0.5,2.69,"1"
`
	r, err := NewStreamReader(strings.NewReader(data), WithSchema(smallSchema()))
	require.NoError(t, err)

	table, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	assert.Equal(t, []float64{0, 149.62, -1.5, 0.25}, table.Records[0].Features())
	assert.Equal(t, 0, table.Records[0].Class)
	assert.Equal(t, []float64{1, 2.69, 1.19, -0.5}, table.Records[1].Features())
	assert.Equal(t, 1, table.Records[1].Class)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name:    "empty input",
			data:    "",
			wantErr: ErrMissingColumn,
		},
		{
			name:    "missing amount column",
			data:    "Time,V1,V2,Class\n0,1,2,0\n",
			wantErr: ErrMissingColumn,
		},
		{
			name:    "non numeric feature",
			data:    "Time,V1,V2,Amount,Class\n0,abc,2,10,0\n",
			wantErr: ErrInvalidValue,
		},
		{
			name:    "missing value",
			data:    "Time,V1,V2,Amount,Class\n0,,2,10,0\n",
			wantErr: ErrInvalidValue,
		},
		{
			name:    "nan feature",
			data:    "Time,V1,V2,Amount,Class\n0,NaN,2,10,0\n",
			wantErr: ErrInvalidValue,
		},
		{
			name:    "label out of range",
			data:    "Time,V1,V2,Amount,Class\n0,1,2,10,2\n",
			wantErr: ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewStreamReader(strings.NewReader(tt.data), WithSchema(smallSchema()))
			if err == nil {
				_, err = r.Read()
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	data := "Time,V1,V2,Amount,Class\n0,1,2,10,0\n1,1,x,10,0\n"
	r, err := NewStreamReader(strings.NewReader(data), WithSchema(smallSchema()))
	require.NoError(t, err)

	_, err = r.Read()
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, "V2", perr.Column)
}

func TestNewReaderMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriterRoundTrip(t *testing.T) {
	schema := smallSchema()
	table := txn.NewTable(schema, []txn.Record{
		{Time: 0, Amount: 10.5, V: []float64{0.1, -0.2}, Class: 0, PredictedFraud: 0, RiskScore: 3},
		{Time: 5, Amount: 999, V: []float64{4, 5}, Class: 1, PredictedFraud: 1, RiskScore: 100},
	})

	var buf bytes.Buffer
	w := NewWriter(&buf, schema)
	require.NoError(t, w.WriteAll(table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Time,Amount,V1,V2,Class,PredictedFraud,RiskScore", lines[0])
	assert.Equal(t, "5,999,4,5,1,1,100", lines[2])

	// Exported files stay readable by the loader.
	r, err := NewStreamReader(strings.NewReader(buf.String()), WithSchema(schema))
	require.NoError(t, err)
	back, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, table.Records[1].Features(), back.Records[1].Features())
}

func TestWriterEmptyTableWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, smallSchema())
	require.NoError(t, w.WriteAll(txn.NewTable(smallSchema(), nil)))
	assert.Equal(t, "Time,Amount,V1,V2,Class,PredictedFraud,RiskScore\n", buf.String())
}
