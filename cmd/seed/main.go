package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/jwalitptl/vetclinic-api/internal/config"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository/postgres"
	auditService "github.com/jwalitptl/vetclinic-api/internal/service/audit"
	"github.com/jwalitptl/vetclinic-api/internal/service/directory"
	"github.com/jwalitptl/vetclinic-api/pkg/auth"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
	"github.com/jwalitptl/vetclinic-api/pkg/validator"
)

var species = []string{"dog", "cat", "rabbit", "parrot", "hamster"}

func main() {
	vets := flag.Int("vets", 3, "number of veterinarians")
	clients := flag.Int("clients", 10, "number of clients")
	seed := flag.Uint64("seed", 0, "fixed random seed, 0 picks one")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger(&logger.Config{Level: logger.InfoLevel, TimeFormat: time.RFC3339, Output: os.Stdout, Pretty: true})

	if err := run(context.Background(), cfg, log, *vets, *clients, *seed); err != nil {
		log.Fatal(err, "seed failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, vets, clients int, seed uint64) error {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	base := postgres.NewBaseRepository(db)
	auditor := auditService.NewAuditLogger(auditService.NewService(postgres.NewAuditRepository(base)), log)
	svc := directory.NewService(postgres.NewPartyRepository(base), postgres.NewPatientRepository(base), validator.New(), auditor)

	f := gofakeit.New(seed)
	jwt := auth.NewJWTService(auth.JWTConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiry: cfg.JWT.Expiry})

	secretary, err := svc.CreateParty(ctx, partyRequest(f, model.PartyRoleSecretary))
	if err != nil {
		return fmt.Errorf("failed to create secretary: %w", err)
	}
	token, err := jwt.GenerateAccessToken(secretary.ID, secretary.Email, string(secretary.Role))
	if err != nil {
		return err
	}
	log.Info("secretary created", "party_id", secretary.ID.String(), "token", token)

	for i := 0; i < vets; i++ {
		vet, err := svc.CreateParty(ctx, partyRequest(f, model.PartyRoleVeterinarian))
		if err != nil {
			return fmt.Errorf("failed to create veterinarian: %w", err)
		}
		log.Info("veterinarian created", "party_id", vet.ID.String(), "name", vet.FullName())
	}

	patients := 0
	for i := 0; i < clients; i++ {
		owner, err := svc.CreateParty(ctx, partyRequest(f, model.PartyRoleClient))
		if err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}

		pets := f.Number(1, 3)
		for j := 0; j < pets; j++ {
			kind := f.RandomString(species)
			breed := ""
			switch kind {
			case "dog":
				breed = f.Dog()
			case "cat":
				breed = f.Cat()
			}
			birth := f.DateRange(time.Now().AddDate(-15, 0, 0), time.Now().AddDate(0, -2, 0)).UTC()
			_, err := svc.CreatePatient(ctx, model.CreatePatientRequest{
				OwnerID:   owner.ID,
				Name:      f.PetName(),
				Species:   kind,
				Breed:     breed,
				BirthDate: &birth,
			})
			if err != nil {
				return fmt.Errorf("failed to create patient: %w", err)
			}
			patients++
		}
	}

	log.Info("seed complete", "veterinarians", vets, "clients", clients, "patients", patients)
	return nil
}

func partyRequest(f *gofakeit.Faker, role model.PartyRole) model.CreatePartyRequest {
	req := model.CreatePartyRequest{
		Role:      role,
		FirstName: f.FirstName(),
		LastName:  f.LastName(),
		Email:     f.Email(),
		Phone:     f.Phone(),
	}
	switch role {
	case model.PartyRoleVeterinarian:
		req.LicenseNumber = f.Numerify("VET-######")
		req.Specialty = f.RandomString([]string{"general", "surgery", "dermatology", "dentistry"})
	case model.PartyRoleClient:
		req.Address = f.Address().Address
	}
	return req
}
