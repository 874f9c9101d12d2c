package visa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectory_Map(t *testing.T) {
	d, err := ParseDirectory([]byte(`{
		"USA": {"requirements": ["I-20", "SEVIS fee"], "fees": "160", "currency": "USD"},
		"United Kingdom": {"requirements": ["CAS"], "fees": "490", "currency": "GBP"}
	}`))
	require.NoError(t, err)

	info, ok := d.Lookup("  usa ")
	require.True(t, ok)
	assert.Equal(t, "USA", info.Country)
	assert.Equal(t, []string{"I-20", "SEVIS fee"}, info.Requirements)
	assert.Equal(t, "USD", info.Currency)

	assert.Equal(t, []string{"USA", "United Kingdom"}, d.Countries())
}

func TestParseDirectory_List(t *testing.T) {
	d, err := ParseDirectory([]byte(`[{"country": "Canada", "requirements": ["Study permit"], "fees": "150", "currency": "CAD"}]`))
	require.NoError(t, err)

	info, ok := d.Lookup("CANADA")
	require.True(t, ok)
	assert.Equal(t, "150", info.Fees)
}

func TestLookup_Unknown(t *testing.T) {
	d := NewDirectory(nil)
	info, ok := d.Lookup("Narnia")
	assert.False(t, ok)
	assert.Nil(t, info)
}

func TestLookup_ReturnsCopy(t *testing.T) {
	d, err := ParseDirectory([]byte(`{"USA": {"requirements": ["I-20"]}}`))
	require.NoError(t, err)

	first, _ := d.Lookup("USA")
	first.Requirements[0] = "changed"

	second, _ := d.Lookup("USA")
	assert.Equal(t, "I-20", second.Requirements[0])
}

func TestLoadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visa_info.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Germany": {"requirements": ["Blocked account"]}}`), 0o644))

	d, err := LoadDirectory(path)
	require.NoError(t, err)
	_, ok := d.Lookup("germany")
	assert.True(t, ok)

	_, err = LoadDirectory(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))
	_, err = LoadDirectory(path)
	assert.Error(t, err)
}
