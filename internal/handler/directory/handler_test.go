package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vetclinic-api/internal/middleware"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/pkg/errors"
	"github.com/jwalitptl/vetclinic-api/pkg/httputil"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
)

type stubDirectory struct {
	parties     map[uuid.UUID]*model.Party
	patientReq  *model.CreatePatientRequest
	patientErr  error
	partyFilter model.PartyFilter
}

func (s *stubDirectory) CreateParty(_ context.Context, req model.CreatePartyRequest) (*model.Party, error) {
	p := &model.Party{Base: model.Base{ID: uuid.New()}, Role: req.Role, FirstName: req.FirstName, LastName: req.LastName, Email: req.Email}
	s.parties[p.ID] = p
	return p, nil
}

func (s *stubDirectory) GetParty(_ context.Context, id uuid.UUID) (*model.Party, error) {
	p, ok := s.parties[id]
	if !ok {
		return nil, errors.NewNotFound("party", nil)
	}
	return p, nil
}

func (s *stubDirectory) ListParties(_ context.Context, filter model.PartyFilter) ([]*model.Party, error) {
	s.partyFilter = filter
	return []*model.Party{}, nil
}

func (s *stubDirectory) CreatePatient(_ context.Context, req model.CreatePatientRequest) (*model.Patient, error) {
	s.patientReq = &req
	if s.patientErr != nil {
		return nil, s.patientErr
	}
	return &model.Patient{Base: model.Base{ID: uuid.New()}, OwnerID: req.OwnerID, Name: req.Name, Species: req.Species}, nil
}

func (s *stubDirectory) GetPatient(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	return nil, errors.NewNotFound("patient", nil)
}

func (s *stubDirectory) ListPatients(context.Context, model.PatientFilter) ([]*model.Patient, error) {
	return []*model.Patient{}, nil
}

func setup() (*gin.Engine, *stubDirectory) {
	gin.SetMode(gin.TestMode)
	svc := &stubDirectory{parties: map[uuid.UUID]*model.Party{}}
	r := gin.New()
	r.Use(middleware.ErrorHandler(logger.Nop()))
	g := r.Group("/api/v1")
	NewHandler(svc).RegisterRoutes(g, g)
	return r, svc
}

func send(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetParty(t *testing.T) {
	r, _ := setup()

	w := send(r, http.MethodPost, "/api/v1/parties", map[string]string{
		"role":       "client",
		"first_name": "Marta",
		"last_name":  "Ruiz",
		"email":      "marta@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data model.Party `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, model.PartyRoleClient, created.Data.Role)

	w = send(r, http.MethodGet, "/api/v1/parties/"+created.Data.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(r, http.MethodGet, "/api/v1/parties/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePatientWrongOwnerRole(t *testing.T) {
	r, svc := setup()
	svc.patientErr = errors.NewBadRequest("party is not a client", nil).WithReason(errors.ReasonWrongRole)

	w := send(r, http.MethodPost, "/api/v1/patients", map[string]interface{}{
		"owner_id": uuid.New(),
		"name":     "Toby",
		"species":  "dog",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errors.ReasonWrongRole, resp.Error.Reason)
	assert.Equal(t, "Toby", svc.patientReq.Name)
}

func TestListPartiesQuery(t *testing.T) {
	r, svc := setup()

	w := send(r, http.MethodGet, "/api/v1/parties?role=veterinarian&offset=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.PartyRoleVeterinarian, svc.partyFilter.Role)
	assert.Equal(t, 5, svc.partyFilter.Offset)

	w = send(r, http.MethodGet, "/api/v1/parties?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
