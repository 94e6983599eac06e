package automation

import (
	"time"

	"github.com/autovendas/lead-gateway/internal/model"
)

// Matches evaluates a rule condition against a lead. Every set predicate
// field must pass. An empty condition matches nothing, and a predicate
// that cannot be evaluated (e.g. inactivity on a lead with no interaction
// timestamp) fails the match instead of raising an error.
func Matches(c model.Condition, lead *model.Lead, now time.Time) bool {
	if c.Empty() {
		return false
	}
	if c.Status != nil && lead.Status != *c.Status {
		return false
	}
	for _, st := range c.StatusNotIn {
		if lead.Status == st {
			return false
		}
	}
	if c.ScoreMin != nil && lead.Score < *c.ScoreMin {
		return false
	}
	if c.InactiveHours != nil {
		if lead.LastInteractionAt.IsZero() {
			return false
		}
		if lead.InactiveFor(now) < time.Duration(*c.InactiveHours)*time.Hour {
			return false
		}
	}
	if c.MaxFollowUps != nil && lead.AutomatedFollowUps() >= *c.MaxFollowUps {
		return false
	}
	return true
}

// onCooldown reports whether the rule already fired for this lead within
// its cooldown window.
func onCooldown(rule model.Rule, lead *model.Lead, now time.Time) bool {
	last, ok := lead.LastAutomation(rule.Name)
	if !ok {
		return false
	}
	return now.Sub(last) < rule.EffectiveCooldown()
}

func intPtr(v int) *int { return &v }

func statusPtr(s model.LeadStatus) *model.LeadStatus { return &s }

// DefaultRules is the seed rule catalog: inactivity follow-up, test-drive
// reminder, cold-lead reactivation and hot-lead qualification. Rule names
// double as cooldown keys and must stay stable across releases.
func DefaultRules() []model.Rule {
	return []model.Rule{
		{
			Name:        "follow_up_inativo_5h",
			Description: "Follow-up para leads inativos há 5 horas",
			Condition: model.Condition{
				InactiveHours: intPtr(5),
				StatusNotIn:   []model.LeadStatus{model.StatusWon, model.StatusLost},
				MaxFollowUps:  intPtr(3),
			},
			Templates: []string{
				"Oi! Só passando para saber se você teve a chance de ver as informações que te enviei. Alguma dúvida que posso esclarecer?",
				"Olá! Notei que conversamos mais cedo sobre os carros. Tem alguma pergunta que posso ajudar a responder?",
				"Oi! Queria saber se você gostaria de mais detalhes sobre algum modelo específico que conversamos.",
				"Olá! Caso tenha ficado alguma dúvida sobre nossas ofertas, estou aqui para ajudar!",
			},
		},
		{
			Name:        "lembrete_test_drive",
			Description: "Lembrete para test drive agendado",
			// Appointment proximity lives in the calendar integration, not
			// in the lead record; this rule keys off status alone and the
			// cooldown keeps it to one reminder per day.
			Condition: model.Condition{
				Status: statusPtr(model.StatusScheduled),
			},
			Templates: []string{
				"Oi! Só para confirmar seu test drive amanhã. Nosso endereço é Av. Osvaldo Reis, 1515 - Itajaí. Estamos te esperando!",
				"Olá! Lembrete do seu test drive marcado para amanhã. Qualquer imprevisto, é só me avisar!",
				"Oi! Confirmando seu test drive de amanhã. Vai ser ótimo te conhecer pessoalmente!",
			},
		},
		{
			Name:        "reativacao_lead_frio",
			Description: "Reativação de leads frios (7 dias sem interação)",
			Condition: model.Condition{
				InactiveHours: intPtr(168),
				StatusNotIn:   []model.LeadStatus{model.StatusWon, model.StatusLost},
				ScoreMin:      intPtr(10),
			},
			Templates: []string{
				"Oi! Faz um tempo que não conversamos. Temos algumas ofertas especiais novas que podem te interessar. Quer dar uma olhada?",
				"Olá! Apareceram algumas condições especiais de financiamento que talvez sejam interessantes para você. Posso te contar?",
				"Oi! Chegaram alguns carros novos na loja que podem ser do seu perfil. Quer que eu te mande as informações?",
			},
		},
		{
			Name:        "qualificacao_lead_quente",
			Description: "Qualificação de leads com alto score",
			Condition: model.Condition{
				ScoreMin: intPtr(50),
				Status:   statusPtr(model.StatusNew),
			},
			Templates: []string{
				"Oi! Vejo que você tem bastante interesse em nossos carros. Que tal agendarmos um test drive para você conhecer melhor?",
				"Olá! Pelo seu interesse, acredito que temos o carro ideal para você. Podemos conversar sobre as condições?",
				"Oi! Notei seu interesse em nossos veículos. Quer que eu prepare uma proposta personalizada para você?",
			},
		},
	}
}
