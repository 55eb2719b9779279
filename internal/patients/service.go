package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbpkg "github.com/angelmondragon/mediconnect-backend/pkg/db"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreatePatientInput registers a patient. Only admins may create patients.
type CreatePatientInput struct {
	IDNumber  string
	Name      string
	ActorID   string
	ActorRole enums.ActorRole
}

type Service interface {
	Create(ctx context.Context, input CreatePatientInput) (*models.Patient, error)
	Get(ctx context.Context, id uuid.UUID, actorID string, role enums.ActorRole) (*models.Patient, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("patients repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreatePatientInput) (*models.Patient, error) {
	if strings.TrimSpace(input.ActorID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.ActorRole != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	idNumber := strings.TrimSpace(input.IDNumber)
	name := strings.TrimSpace(input.Name)
	if idNumber == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id number and name are required")
	}

	patient, err := s.repo.Create(ctx, &models.Patient{IDNumber: idNumber, Name: name})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient id number already registered").
				WithDetails(map[string]any{"idNumber": idNumber})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create patient")
	}
	return patient, nil
}

// Get loads a patient. Patients may only read their own record.
func (s *service) Get(ctx context.Context, id uuid.UUID, actorID string, role enums.ActorRole) (*models.Patient, error) {
	if role == enums.ActorRolePatient && actorID != id.String() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "patients may only view their own record")
	}
	patient, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "patient not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load patient")
	}
	return patient, nil
}

func (s *service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.repo.Exists(ctx, id)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check patient")
	}
	return ok, nil
}
