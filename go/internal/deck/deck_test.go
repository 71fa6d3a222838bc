package deck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	d := Default()
	require.Equal(t, "fibonacci", d.Name)
	require.Equal(t, []string{"0", "½", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", "?"}, d.Cards)
}

func TestValidate(t *testing.T) {
	req := require.New(t)
	d := Default()

	five := "5"
	four := "4"
	unsure := "?"

	req.NoError(d.Validate(nil))
	req.NoError(d.Validate(&five))
	req.NoError(d.Validate(&unsure))
	req.ErrorIs(d.Validate(&four), ErrInvalidCard)
}

func TestLoad(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "deck.yaml")
	req.NoError(os.WriteFile(path, []byte("name: tshirt\ncards: [XS, S, M, \" L \", M, \"\", XL]\n"), 0o600))

	d, err := Load(path)
	req.NoError(err)
	req.Equal("tshirt", d.Name)
	req.Equal([]string{"XS", "S", "M", "L", "XL"}, d.Cards)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("name: nothing\ncards: []\n"), 0o600))
	_, err = Load(empty)
	require.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("cards: [unterminated\n"), 0o600))
	_, err = Load(broken)
	require.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	d, err := LoadOrDefault("")
	require.NoError(t, err)
	require.Equal(t, Default(), d)
}
