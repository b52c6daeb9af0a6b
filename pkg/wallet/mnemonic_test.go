package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMnemonic(t *testing.T) {
	tests := []struct {
		entropySize int
		numOfWords  int
	}{
		{0, 12},
		{128, 12},
		{160, 15},
		{256, 24},
	}

	for _, tt := range tests {
		mnemonic, err := NewMnemonic(NewMnemonicOpts{EntropySize: tt.entropySize})
		require.NoError(t, err)
		require.Len(t, strings.Split(mnemonic, " "), tt.numOfWords)
		require.True(t, ValidateSecret(mnemonic))
	}
}

func TestFailingNewMnemonic(t *testing.T) {
	for _, size := range []int{-1, 64, 100, 512} {
		_, err := NewMnemonic(NewMnemonicOpts{EntropySize: size})
		require.ErrorIs(t, err, ErrInvalidEntropySize)
	}
}

func TestGenerateSecret(t *testing.T) {
	mnemonic, err := GenerateSecret()
	require.NoError(t, err)
	require.Len(t, strings.Fields(mnemonic), 12)

	other, err := GenerateSecret()
	require.NoError(t, err)
	require.NotEqual(t, mnemonic, other)
}

func TestValidateSecret(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"valid", testMnemonic, true},
		{"valid with extra spaces", "  " + strings.ReplaceAll(testMnemonic, " ", "   "), true},
		{"bad checksum", strings.Repeat("abandon ", 12), false},
		{"unknown word", strings.Replace(testMnemonic, "about", "bitcoin1", 1), false},
		{"too short", "abandon about", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.valid, ValidateSecret(tt.mnemonic))
		})
	}
}
