package persistence

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func TestAsDecimalPtr(t *testing.T) {
	t.Parallel()

	t.Run("null numeric", func(t *testing.T) {
		t.Parallel()
		d, err := asDecimalPtr(pgtype.Numeric{})
		require.NoError(t, err)
		require.Nil(t, d)
	})

	t.Run("exact fraction", func(t *testing.T) {
		t.Parallel()
		d, err := asDecimalPtr(pgtype.Numeric{Int: big.NewInt(667), Exp: -3, Valid: true})
		require.NoError(t, err)
		require.Equal(t, "0.667", d.String())
	})

	t.Run("precision beyond float64", func(t *testing.T) {
		t.Parallel()
		digits, ok := new(big.Int).SetString("123456789012345678901", 10)
		require.True(t, ok)

		d, err := asDecimalPtr(pgtype.Numeric{Int: digits, Exp: -21, Valid: true})
		require.NoError(t, err)
		require.Equal(t, "0.123456789012345678901", d.String())
	})

	t.Run("nan rejected", func(t *testing.T) {
		t.Parallel()
		_, err := asDecimalPtr(pgtype.Numeric{NaN: true, Valid: true})
		require.Error(t, err)
	})
}
