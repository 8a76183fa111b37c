package randomness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raffle/internal/raffle"
)

func TestBeacon_Deterministic(t *testing.T) {
	beacon, err := NewBeacon([]byte("block-hash"))
	require.NoError(t, err)

	request := raffle.SeedRequest{EndTime: time.Unix(1_700_000_000, 0), TotalSold: 8}
	first, err := beacon.Seed(request)
	require.NoError(t, err)
	second, err := beacon.Seed(request)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEqual(t, raffle.Seed{}, first)

	request.TotalSold = 9
	other, err := beacon.Seed(request)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	_, err = NewBeacon(nil)
	assert.Error(t, err)
}

func TestCrypto(t *testing.T) {
	first, err := Crypto{}.Seed(raffle.SeedRequest{})
	require.NoError(t, err)
	second, err := Crypto{}.Seed(raffle.SeedRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestNew(t *testing.T) {
	source, err := New("beacon", []byte{1})
	require.NoError(t, err)
	assert.IsType(t, &Beacon{}, source)

	source, err = New("crypto", nil)
	require.NoError(t, err)
	assert.IsType(t, Crypto{}, source)

	_, err = New("beacon", nil)
	assert.Error(t, err)
	_, err = New("dice", nil)
	assert.Error(t, err)

	var seed raffle.Seed
	seed[0] = 7
	got, err := Fixed(seed).Seed(raffle.SeedRequest{})
	require.NoError(t, err)
	assert.Equal(t, seed, got)
}
