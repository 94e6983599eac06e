package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const offersJSON = `[
  {
    "modelo": "Fiat Toro",
    "versao": "Endurance 1.3 Turbo",
    "motor": "1.3 Turbo Flex",
    "cambio": "Automático CVT",
    "combustivel": "Flex",
    "tags": ["picape", "aventura"],
    "publico_alvo": ["famílias", "trabalho"],
    "condicoes": ["Entrada de 50% + 24x sem juros"],
    "preco_por": "R$ 144.990,00",
    "link_modelo": "https://exemplo.com/toro"
  },
  {
    "modelo": "Fiat Strada",
    "versao": "Freedom 1.3",
    "motor": "1.3 Flex",
    "cambio": "Manual",
    "combustivel": "Flex",
    "tags": ["picape", "trabalho"],
    "condicoes": ["Taxa zero em 36x"],
    "preco_de": 112990,
    "preco_por": 104990,
    "link_oferta": "https://exemplo.com/strada-oferta"
  },
  {
    "modelo": "Fiat Pulse",
    "versao": "Drive 1.3",
    "tags": ["suv"],
    "preco_a_partir": "R$ 99.990,00"
  }
]`

func writeOffers(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ofertas.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPrice_UnmarshalJSON(t *testing.T) {
	t.Run("formatted string", func(t *testing.T) {
		var p Price
		require.NoError(t, json.Unmarshal([]byte(`"R$ 89.990,00"`), &p))
		assert.True(t, p.Set)
		assert.InDelta(t, 89990.0, p.Value, 0.001)
	})

	t.Run("plain number", func(t *testing.T) {
		var p Price
		require.NoError(t, json.Unmarshal([]byte(`104990.5`), &p))
		assert.True(t, p.Set)
		assert.InDelta(t, 104990.5, p.Value, 0.001)
	})

	t.Run("empty and unparseable strings stay unset", func(t *testing.T) {
		var p Price
		require.NoError(t, json.Unmarshal([]byte(`""`), &p))
		assert.False(t, p.Set)

		require.NoError(t, json.Unmarshal([]byte(`"sob consulta"`), &p))
		assert.False(t, p.Set)
	})
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 144.990,00", FormatBRL(Price{Value: 144990, Set: true}))
	assert.Equal(t, "R$ 1.234.567,89", FormatBRL(Price{Value: 1234567.89, Set: true}))
	assert.Equal(t, "R$ 990,50", FormatBRL(Price{Value: 990.5, Set: true}))
	assert.Equal(t, "indisponível", FormatBRL(Price{}))
}

func TestCatalog_TryAnswer(t *testing.T) {
	newCatalog := func(t *testing.T) *Catalog {
		return New(writeOffers(t, offersJSON), 3)
	}

	t.Run("list intent renders highlight cards", func(t *testing.T) {
		c := newCatalog(t)
		reply, ok := c.TryAnswer("quais as ofertas de hoje?")
		require.True(t, ok)
		assert.Contains(t, reply, "Algumas ofertas em destaque:")
		assert.Contains(t, reply, "Fiat Pulse")
	})

	t.Run("price intent", func(t *testing.T) {
		c := newCatalog(t)
		reply, ok := c.TryAnswer("qual o valor da Toro?")
		require.True(t, ok)
		assert.Contains(t, reply, "Fiat Toro Endurance 1.3 Turbo")
		assert.Contains(t, reply, "Preço por: R$ 144.990,00")
		assert.Contains(t, reply, "https://exemplo.com/toro")
	})

	t.Run("link intent", func(t *testing.T) {
		c := newCatalog(t)
		reply, ok := c.TryAnswer("me manda o link da strada")
		require.True(t, ok)
		assert.Contains(t, reply, "https://exemplo.com/strada-oferta")
	})

	t.Run("conditions intent", func(t *testing.T) {
		c := newCatalog(t)
		reply, ok := c.TryAnswer("como funciona o financiamento da strada?")
		require.True(t, ok)
		assert.Contains(t, reply, "Condições: Taxa zero em 36x")
	})

	t.Run("matching ignores accents and case", func(t *testing.T) {
		c := newCatalog(t)
		reply, ok := c.TryAnswer("Preço do PULSE suv?")
		require.True(t, ok)
		assert.Contains(t, reply, "Fiat Pulse")
	})

	t.Run("declines when no model matches", func(t *testing.T) {
		c := newCatalog(t)
		_, ok := c.TryAnswer("vocês vendem motos?")
		assert.False(t, ok)
	})

	t.Run("missing offers file declines", func(t *testing.T) {
		c := New(filepath.Join(t.TempDir(), "nope.json"), 3)
		_, ok := c.TryAnswer("qual o preço da toro?")
		assert.False(t, ok)
	})
}

func TestCatalog_Reload(t *testing.T) {
	path := writeOffers(t, offersJSON)
	c := New(path, 3)

	_, ok := c.TryAnswer("preço da toro")
	require.True(t, ok)

	// Swap the file and bump its mtime past the cached one.
	updated := `[{"modelo": "Fiat Mobi", "versao": "Like 1.0", "preco_por": 68990}]`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	_, ok = c.TryAnswer("preço da toro")
	assert.False(t, ok, "old offers must be gone after reload")

	reply, ok := c.TryAnswer("preço do mobi")
	require.True(t, ok)
	assert.Contains(t, reply, "Fiat Mobi")

	t.Run("broken replacement keeps the last good offers", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
		far := time.Now().Add(4 * time.Second)
		require.NoError(t, os.Chtimes(path, far, far))

		reply, ok := c.TryAnswer("preço do mobi")
		require.True(t, ok)
		assert.Contains(t, reply, "Fiat Mobi")
	})
}

func TestCatalog_ListOrdering(t *testing.T) {
	c := New(writeOffers(t, offersJSON), 2)
	reply, ok := c.TryAnswer("lista de carros")
	require.True(t, ok)

	// Cheapest priced offers first, capped at maxCards.
	assert.Contains(t, reply, "Fiat Pulse")
	assert.Contains(t, reply, "Fiat Strada")
	assert.NotContains(t, reply, "Fiat Toro")
}
