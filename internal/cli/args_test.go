package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connectx "github.com/mintelligence/connectx-go"
)

func TestParsePairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", args: nil, want: map[string]any{}},
		{name: "pairs", args: []string{"a=1", "b=x y"}, want: map[string]any{"a": "1", "b": "x y"}},
		{name: "value with equals", args: []string{"q=a=b"}, want: map[string]any{"q": "a=b"}},
		{name: "empty value", args: []string{"a="}, want: map[string]any{"a": ""}},
		{name: "missing equals", args: []string{"a"}, wantErr: true},
		{name: "missing key", args: []string{"=1"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parsePairs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCustom(t *testing.T) {
	t.Parallel()

	got, err := parseCustom("Car:plate=AB-1,color=red")
	require.NoError(t, err)
	assert.Equal(t, connectx.CustomObject{
		Name:       "Car",
		Attributes: map[string]any{"plate": "AB-1", "color": "red"},
	}, got)

	got, err = parseCustom("Empty")
	require.NoError(t, err)
	assert.Equal(t, "Empty", got.Name)
	assert.Empty(t, got.Attributes)

	_, err = parseCustom(":a=1")
	assert.Error(t, err)

	_, err = parseCustom("Car:broken")
	assert.Error(t, err)
}

func TestParseRecord(t *testing.T) {
	t.Parallel()

	rec, err := parseRecord(`{"plate":"AB-1","attributes":{"referenceId":"r1"}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"referenceId": "r1"}, rec.Attributes)
	assert.Equal(t, map[string]any{"plate": "AB-1"}, rec.Fields)

	rec, err = parseRecord(`{"plate":"CD-2"}`)
	require.NoError(t, err)
	assert.Nil(t, rec.Attributes)

	for _, bad := range []string{`[1,2]`, `not json`, `null`, `{"attributes":"x"}`} {
		_, err := parseRecord(bad)
		assert.Error(t, err, bad)
	}
}
