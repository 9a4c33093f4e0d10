// Package seed fills an empty registry with demonstration cases.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sos-echo/platform/services/case/internal/identity"
	"github.com/sos-echo/platform/services/case/internal/model"
	"github.com/sos-echo/platform/services/case/internal/workflow"
)

// DefaultCount is the number of cases seeded when none is configured.
const DefaultCount = 50

// Programmes are the villages demo cases are spread across.
var Programmes = []string{"Village Tunis", "Village Akouda", "Village Mahres", "Village Siliana"}

var (
	children = []string{"Ahmed B.", "Sonia K.", "Yassine M.", "Fatma Z.", "Omar R.", "Amira L.", "Khalil J.", "Nour H."}
	authors  = []string{"Inconnu", "Camarade de classe", "Voisinage", "Ancien personnel", "Visiteur extérieur"}

	scenarios = []string{
		"Altercation verbale entre deux enfants lors du déjeuner. Escalade évitée par l'intervention d'une mère SOS.",
		"L'enfant présente des signes de repli sur soi et refuse de participer aux activités collectives.",
		"Chute accidentelle dans la cour entraînant une écorchure au genou.",
		"Suspicion de harcèlement scolaire rapportée par un témoin anonyme.",
		"Comportement agressif inhabituel envers les autres membres de la fratrie.",
		"L'enfant a quitté l'enceinte du village sans autorisation pendant 30 minutes.",
		"Plainte d'un enfant concernant la disparition de ses effets personnels.",
		"Découverte de traces de coups lors de l'habillage matinal.",
		"Demande de médiation entre deux fratries suite à un conflit.",
		"Signalement de fatigue intense et manque d'appétit chez l'enfant.",
	}

	stepDocuments = []string{
		"Rapport DPE transmis, notifications envoyées à la direction du village.",
		"Évaluation clinique complète réalisée avec l'enfant et la mère SOS.",
		"Plan d'action défini : suivi psychologique hebdomadaire et médiation.",
		"Rapport de suivi : amélioration constatée, plan respecté.",
		"Avis de clôture définitif rédigé.",
	}
)

// CaseService is the part of the case service the seeder drives.
type CaseService interface {
	CreateCase(ctx context.Context, user model.User, req *model.CreateCaseRequest) (*model.IncidentCase, error)
	Apply(ctx context.Context, user model.User, id string, version int64, op workflow.Operation) (*model.IncidentCase, error)
}

// Result counts what a seed run produced.
type Result struct {
	Created     int
	Processing  int
	Closed      int
	Archived    int
	FalseReport int
}

// Seeder creates demo cases through the case service so every seeded case
// carries a consistent audit trail.
type Seeder struct {
	cases      CaseService
	declarant  model.User
	analyst    model.User
	governance model.User
	logger     *slog.Logger
}

// New creates a seeder acting as the fixed role-table users.
func New(cases CaseService, logger *slog.Logger) (*Seeder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Seeder{cases: cases, logger: logger}
	for id, dst := range map[string]*model.User{"u1": &s.declarant, "u2": &s.analyst, "u3": &s.governance} {
		u, ok := identity.LookupUser(id)
		if !ok {
			return nil, fmt.Errorf("seed user %s missing from role table", id)
		}
		*dst = u
	}
	return s, nil
}

// Run creates count cases. The first tenth stay pending, the next fifth are
// in progress, and the rest are driven to step 5; a share of those is
// archived by governance and every twelfth case is marked a false report.
func (s *Seeder) Run(ctx context.Context, count int) (*Result, error) {
	if count <= 0 {
		count = DefaultCount
	}
	res := &Result{}
	pendingUntil := count / 10
	processingUntil := pendingUntil + count/5

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		c, err := s.cases.CreateCase(ctx, s.declarant, draftFor(i))
		if err != nil {
			return res, fmt.Errorf("seed case %d: %w", i, err)
		}
		res.Created++

		switch {
		case i < pendingUntil:
			continue
		case i%12 == 11:
			if _, err := s.cases.Apply(ctx, s.analyst, c.ID, 0, workflow.MarkFalseReport{Reason: "Aucun élément probant après entretien."}); err != nil {
				return res, fmt.Errorf("seed false report %s: %w", c.ID, err)
			}
			res.FalseReport++
		case i < processingUntil:
			if err := s.advance(ctx, c.ID, 1+i%3); err != nil {
				return res, err
			}
			res.Processing++
		default:
			if err := s.advance(ctx, c.ID, model.MaxStep); err != nil {
				return res, err
			}
			res.Closed++
			if i%3 == 0 {
				op := workflow.Archive{DecisionNote: "Dossier examiné en comité, mesures validées."}
				if _, err := s.cases.Apply(ctx, s.governance, c.ID, 0, op); err != nil {
					return res, fmt.Errorf("seed archive %s: %w", c.ID, err)
				}
				res.Archived++
			}
		}
	}

	s.logger.Info("demo cases seeded",
		"created", res.Created,
		"processing", res.Processing,
		"closed", res.Closed,
		"archived", res.Archived,
		"false_reports", res.FalseReport,
	)
	return res, nil
}

func (s *Seeder) advance(ctx context.Context, id string, steps int) error {
	for step := 1; step <= steps; step++ {
		op := workflow.AdvanceStep{Step: step, Document: stepDocuments[step-1]}
		if _, err := s.cases.Apply(ctx, s.analyst, id, 0, op); err != nil {
			return fmt.Errorf("seed step %d on %s: %w", step, id, err)
		}
	}
	return nil
}

func draftFor(i int) *model.CreateCaseRequest {
	urgency := model.UrgencyMedium
	switch {
	case i%10 == 0:
		urgency = model.UrgencyCritical
	case i%4 == 0:
		urgency = model.UrgencyHigh
	}
	return &model.CreateCaseRequest{
		Category:      model.Categories[(i*3)%len(model.Categories)],
		Programme:     Programmes[i%len(Programmes)],
		Description:   scenarios[(i*7)%len(scenarios)],
		IsAnonymous:   i%7 == 3,
		ChildName:     children[(i*5)%len(children)],
		AllegedAuthor: authors[i%len(authors)],
		Urgency:       urgency,
	}
}
