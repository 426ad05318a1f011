package products

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	require.Equal(t, "acucar", Fold("Açúcar"))
	require.Equal(t, "feijao carioca", Fold("Feijão Carioca"))
	require.Equal(t, "arroz branco 5kg", Fold("Arroz Branco 5kg"))
	require.Equal(t, "", Fold(""))
}
