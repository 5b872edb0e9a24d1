// Package seed fills a lead store with realistic fake data through the
// lead service, so every seeded lead gets a proper stage history.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/transport"
	"leadtracker_backend/platform/logger"

	"github.com/brianvoe/gofakeit/v6"
)

const contactWindow = 30 * 24 * time.Hour

// LeadCreator is the slice of the lead service the seeder needs.
type LeadCreator interface {
	GetByEmail(ctx context.Context, email string) (transport.LeadResponse, bool, error)
	Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error)
}

// Generate builds n create requests with unique emails spread over every stage.
func Generate(faker *gofakeit.Faker, pipeline *domain.Pipeline, n int, now time.Time) []transport.CreateLeadRequest {
	stages := pipeline.Stages()
	seen := make(map[string]struct{}, n)
	out := make([]transport.CreateLeadRequest, 0, n)

	for i := 0; i < n; i++ {
		first, last := faker.FirstName(), faker.LastName()
		company := faker.Company()

		email := domain.NormalizeEmail(fmt.Sprintf("%s.%s@%s", localPart(first), localPart(last), faker.DomainName()))
		if _, dup := seen[email]; dup {
			email = strings.Replace(email, "@", fmt.Sprintf("%d@", i), 1)
		}
		seen[email] = struct{}{}

		req := transport.CreateLeadRequest{
			Name:         truncate(first+" "+last, 100),
			Email:        email,
			Company:      truncate(company, 100),
			Engaged:      faker.Bool(),
			CurrentStage: stages[faker.Number(0, len(stages)-1)],
		}
		if faker.Number(0, 9) > 1 {
			contacted := faker.DateRange(now.Add(-contactWindow), now).UTC()
			req.LastContacted = &contacted
		}
		out = append(out, req)
	}
	return out
}

// Run creates every request whose email is not taken yet.
func Run(ctx context.Context, creator LeadCreator, reqs []transport.CreateLeadRequest, log *logger.Logger) (created, skipped int, err error) {
	for _, req := range reqs {
		if _, found, err := creator.GetByEmail(ctx, req.Email); err != nil {
			return created, skipped, fmt.Errorf("check %s: %w", req.Email, err)
		} else if found {
			skipped++
			continue
		}

		lead, err := creator.Create(ctx, req)
		if err != nil {
			return created, skipped, fmt.Errorf("create %s: %w", req.Email, err)
		}
		created++
		log.Debug("seeded lead", "leadId", lead.ID, "stage", lead.CurrentStage)
	}
	return created, skipped, nil
}

func localPart(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
