// Package catalog answers offer questions straight from the dealership's
// offers file, short-circuiting the response generator when the message
// clearly targets a known model. The strategy is conservative: when in
// doubt it declines and lets the generator take over.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/autovendas/lead-gateway/pkg/logger"
	"golang.org/x/text/unicode/norm"
)

// Price accepts JSON numbers or formatted strings ("R$ 89.990,00").
type Price struct {
	Value float64
	Set   bool
}

func (p *Price) UnmarshalJSON(raw []byte) error {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		p.Value, p.Set = num, true
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	s = strings.NewReplacer("R$", "", ".", "", " ", "").Replace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return nil
	}
	num, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable price is rendered as "indisponível", not an error.
		return nil
	}
	p.Value, p.Set = num, true
	return nil
}

type Offer struct {
	Modelo       string   `json:"modelo"`
	Versao       string   `json:"versao"`
	Motor        string   `json:"motor"`
	Cambio       string   `json:"cambio"`
	Combustivel  string   `json:"combustivel"`
	Tags         []string `json:"tags"`
	PublicoAlvo  []string `json:"publico_alvo"`
	Condicoes    []string `json:"condicoes"`
	PrecoDe      Price    `json:"preco_de"`
	PrecoPor     Price    `json:"preco_por"`
	PrecoAPartir Price    `json:"preco_a_partir"`
	LinkModelo   string   `json:"link_modelo"`
	LinkOferta   string   `json:"link_oferta"`
}

func (o Offer) title() string {
	return strings.TrimSpace(o.Modelo + " " + o.Versao)
}

// link prefers the model page over the offer page.
func (o Offer) link() string {
	if o.LinkModelo != "" {
		return o.LinkModelo
	}
	return o.LinkOferta
}

// price returns the headline price and its label (por / a partir de / de).
func (o Offer) price() (Price, string) {
	switch {
	case o.PrecoPor.Set:
		return o.PrecoPor, "por"
	case o.PrecoAPartir.Set:
		return o.PrecoAPartir, "a partir de"
	default:
		return o.PrecoDe, "de"
	}
}

// searchBlob joins the fields used for token matching.
func (o Offer) searchBlob() string {
	parts := []string{o.Modelo, o.Versao, o.Motor, o.Cambio,
		strings.Join(o.Tags, " "),
		strings.Join(o.PublicoAlvo, " "),
		strings.Join(o.Condicoes, " "),
	}
	return stripAccents(strings.ToLower(strings.Join(parts, " ")))
}

type intent string

const (
	intentList       intent = "lista"
	intentLink       intent = "link"
	intentPrice      intent = "preco"
	intentConditions intent = "condicoes"
	intentAudience   intent = "publico"
	intentDetails    intent = "detalhes"
)

// Catalog loads the offers JSON lazily and caches it by file mtime, so a
// swapped file is picked up without a restart.
type Catalog struct {
	path     string
	maxCards int

	mu     sync.Mutex
	mtime  time.Time
	offers []Offer
}

func New(path string, maxCards int) *Catalog {
	if maxCards <= 0 {
		maxCards = 3
	}
	return &Catalog{path: path, maxCards: maxCards}
}

// TryAnswer returns (reply, true) when the catalog can answer the
// message on its own. Any internal failure yields (_, false).
func (c *Catalog) TryAnswer(message string) (string, bool) {
	offers := c.load()
	if len(offers) == 0 {
		return "", false
	}

	in := detectIntent(message)
	if in == intentList {
		return c.listCards(offers), true
	}

	offer, ok := bestMatch(message, offers)
	if !ok {
		return "", false
	}
	return renderByIntent(in, offer), true
}

func (c *Catalog) load() []Offer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		return nil
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return nil
	}
	if info.ModTime().Equal(c.mtime) {
		return c.offers
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		logger.Warn("failed to read offers file", "path", c.path, "error", err)
		return c.offers
	}
	var offers []Offer
	if err := json.Unmarshal(raw, &offers); err != nil {
		logger.Warn("offers file is not a valid offer list, ignoring", "path", c.path, "error", err)
		return c.offers
	}
	c.mtime = info.ModTime()
	c.offers = offers
	return offers
}

func (c *Catalog) listCards(offers []Offer) string {
	sorted := make([]Offer, len(offers))
	copy(sorted, offers)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, _ := sorted[i].price()
		pj, _ := sorted[j].price()
		if pi.Set != pj.Set {
			return pi.Set
		}
		return pi.Value < pj.Value
	})
	if len(sorted) > c.maxCards {
		sorted = sorted[:c.maxCards]
	}
	cards := make([]string, 0, len(sorted))
	for _, o := range sorted {
		cards = append(cards, renderCard(o))
	}
	return "Algumas ofertas em destaque:\n\n" + strings.Join(cards, "\n\n---\n\n")
}

var tokenRe = regexp.MustCompile(`[a-z0-9.]+`)

func tokenize(text string) []string {
	return tokenRe.FindAllString(stripAccents(strings.ToLower(text)), -1)
}

func stripAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func scoreOffer(tokens []string, o Offer) int {
	blob := o.searchBlob()
	score := 0
	for _, t := range tokens {
		if strings.Contains(blob, t) {
			score++
		}
	}
	return score
}

func bestMatch(query string, offers []Offer) (Offer, bool) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return Offer{}, false
	}
	best := Offer{}
	bestScore := 0
	for _, o := range offers {
		if s := scoreOffer(tokens, o); s > bestScore {
			best, bestScore = o, s
		}
	}
	return best, bestScore > 0
}

func detectIntent(message string) intent {
	s := stripAccents(strings.ToLower(message))
	contains := func(keys ...string) bool {
		for _, k := range keys {
			if strings.Contains(s, k) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("lista", "ofertas", "promo", "promocao", "catalogo"):
		return intentList
	case contains("link", "site", "url"):
		return intentLink
	case contains("preco", "valor", "quanto custa", "a partir"):
		return intentPrice
	case contains("condicao", "condicoes", "parcel", "financi", "taxa"):
		return intentConditions
	case contains("publico", "perfil", "para quem"):
		return intentAudience
	default:
		return intentDetails
	}
}

// FormatBRL renders a price in Brazilian currency format, or
// "indisponível" when the value is unknown.
func FormatBRL(p Price) string {
	if !p.Set {
		return "indisponível"
	}
	whole := int64(p.Value)
	cents := int64((p.Value-float64(whole))*100 + 0.5)
	s := strconv.FormatInt(whole, 10)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return fmt.Sprintf("R$ %s,%02d", strings.Join(parts, "."), cents)
}

func renderCard(o Offer) string {
	price, label := o.price()
	lines := []string{
		o.title(),
		fmt.Sprintf("Preço %s: %s", label, FormatBRL(price)),
	}

	var extras []string
	if o.Motor != "" {
		extras = append(extras, "Motor "+o.Motor)
	}
	if o.Cambio != "" {
		extras = append(extras, "Câmbio "+o.Cambio)
	}
	if o.Combustivel != "" {
		extras = append(extras, o.Combustivel)
	}
	if len(extras) > 0 {
		lines = append(lines, strings.Join(extras, ", "))
	}
	if len(o.Condicoes) > 0 {
		lines = append(lines, "Condições: "+strings.Join(o.Condicoes, "; "))
	}
	if len(o.PublicoAlvo) > 0 {
		lines = append(lines, "Público-alvo: "+strings.Join(o.PublicoAlvo, ", "))
	}
	if link := o.link(); link != "" {
		lines = append(lines, "Link: "+link)
	}
	lines = append(lines, "Quer consultar cores, disponibilidade e agendar um test drive?")
	return strings.Join(lines, "\n")
}

func renderByIntent(in intent, o Offer) string {
	title := o.title()
	link := o.link()
	price, label := o.price()

	withLink := func(base string) string {
		if link != "" {
			return base + "\n" + link
		}
		return base
	}

	switch in {
	case intentLink:
		if link == "" {
			return title + "\nLink indisponível."
		}
		return title + "\n" + link
	case intentPrice:
		return withLink(fmt.Sprintf("%s\nPreço %s: %s", title, label, FormatBRL(price)))
	case intentConditions:
		cond := strings.Join(o.Condicoes, "; ")
		if cond == "" {
			cond = "Não informado."
		}
		return withLink(title + "\nCondições: " + cond)
	case intentAudience:
		pub := strings.Join(o.PublicoAlvo, ", ")
		if pub == "" {
			pub = "Não informado."
		}
		return withLink(title + "\nPúblico-alvo: " + pub)
	default:
		return renderCard(o)
	}
}
