package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poap-backend/errs"
	"poap-backend/models"
)

const testAPIToken = "test-api-token"

type fakeEventStore struct {
	events  map[int64]models.Event
	updates []string // fancy ids passed to UpdateEvent
}

func newFakeEventStore(events ...models.Event) *fakeEventStore {
	s := &fakeEventStore{events: make(map[int64]models.Event)}
	for _, event := range events {
		s.events[event.ID] = event
	}
	return s
}

func (s *fakeEventStore) GetEventByID(_ context.Context, id int64) (*models.Event, error) {
	event, ok := s.events[id]
	if !ok {
		return nil, errors.Wrap(errs.NotFound, "event")
	}
	return &event, nil
}

func (s *fakeEventStore) GetEventByFancyID(_ context.Context, fancyID string) (*models.Event, error) {
	for _, event := range s.events {
		if event.FancyID == fancyID {
			return &event, nil
		}
	}
	return nil, errors.Wrap(errs.NotFound, "event")
}

func (s *fakeEventStore) ListEvents(_ context.Context) ([]models.Event, error) {
	events := make([]models.Event, 0, len(s.events))
	for _, event := range s.events {
		events = append(events, event)
	}
	return events, nil
}

func (s *fakeEventStore) UpdateEvent(_ context.Context, fancyID string, _ models.UpdateEventRequest) error {
	if _, err := s.GetEventByFancyID(context.Background(), fancyID); err != nil {
		return err
	}
	s.updates = append(s.updates, fancyID)
	return nil
}

type fakeRedeemer struct {
	err   error
	calls int
}

func (r *fakeRedeemer) Redeem(_ context.Context, claim models.Claim, _ models.Event) (models.MintOutcome, error) {
	r.calls++
	if r.err != nil {
		if errors.Is(r.err, errs.LedgerPending) {
			return models.MintOutcome{Address: claim.Claimer, TxRef: "0xpending", ErrorKind: string(errs.LedgerPending)}, r.err
		}
		return models.MintOutcome{Address: claim.Claimer, ErrorKind: "failed"}, r.err
	}
	return models.MintOutcome{Address: claim.Claimer, Success: true, TxRef: "0xtx"}, nil
}

type fakeBatchMinter struct {
	outcomes []models.MintOutcome
	calls    int
}

func (m *fakeBatchMinter) MintBatch(_ context.Context, _ int64, recipients []string) []models.MintOutcome {
	m.calls++
	if m.outcomes != nil {
		return m.outcomes
	}
	outcomes := make([]models.MintOutcome, len(recipients))
	for i, recipient := range recipients {
		outcomes[i] = models.MintOutcome{Address: recipient, Success: true, TxRef: "0xtx"}
	}
	return outcomes
}

func testEvent() models.Event {
	signer := "0x" + strings.Repeat("aa", 20)
	return models.Event{ID: 1, FancyID: "devcon6", Name: "Devcon 6", Signer: &signer}
}

func claimRouter(store EventStore, redeemer ClaimRedeemer, minter BatchMinter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewClaimHandler(store, redeemer, minter)
	router.POST("/api/claim", handler.Claim)
	router.POST("/api/mintTokenBatch", RequireAPIToken(testAPIToken), handler.MintBatch)
	return router
}

func doJSON(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const validClaimBody = `{
	"claim_id": "c1",
	"event_id": 1,
	"claimer": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	"proof": "0x` + "111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111c" + `",
	"claimer_signature": "0x` + "222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222222221c" + `"
}`

func TestClaimSuccess(t *testing.T) {
	redeemer := &fakeRedeemer{}
	router := claimRouter(newFakeEventStore(testEvent()), redeemer, &fakeBatchMinter{})

	w := doJSON(router, http.MethodPost, "/api/claim", validClaimBody, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, redeemer.calls)
}

func TestClaimMalformedBody(t *testing.T) {
	redeemer := &fakeRedeemer{}
	router := claimRouter(newFakeEventStore(testEvent()), redeemer, &fakeBatchMinter{})

	w := doJSON(router, http.MethodPost, "/api/claim", `{"claim_id": ""}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Invalid Claim"}`, w.Body.String())
	assert.Equal(t, 0, redeemer.calls)
}

// Every authorization failure kind produces the same undifferentiated
// response body.
func TestClaimAuthorizationFailuresCollapse(t *testing.T) {
	kinds := []error{
		errs.Validation,
		errs.EventNotActive,
		errs.AlreadyRedeemed,
		errs.InvalidProof,
		errs.InvalidClaimerSignature,
	}

	for _, kind := range kinds {
		t.Run(kind.Error(), func(t *testing.T) {
			redeemer := &fakeRedeemer{err: errors.Wrap(kind, "rejected")}
			router := claimRouter(newFakeEventStore(testEvent()), redeemer, &fakeBatchMinter{})

			w := doJSON(router, http.MethodPost, "/api/claim", validClaimBody, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error": "Invalid Claim"}`, w.Body.String())
		})
	}
}

func TestClaimUnknownEventIndistinguishable(t *testing.T) {
	redeemer := &fakeRedeemer{}
	router := claimRouter(newFakeEventStore(), redeemer, &fakeBatchMinter{})

	w := doJSON(router, http.MethodPost, "/api/claim", validClaimBody, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Invalid Claim"}`, w.Body.String())
	assert.Equal(t, 0, redeemer.calls)
}

func TestClaimLedgerErrors(t *testing.T) {
	testcases := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "transient after retry budget",
			err:      errors.Wrap(errs.LedgerTransient, "timeout"),
			expected: http.StatusServiceUnavailable,
		},
		{
			name:     "permanent",
			err:      errors.Wrap(errs.LedgerPermanent, "mint reverted"),
			expected: http.StatusUnprocessableEntity,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			redeemer := &fakeRedeemer{err: tc.err}
			router := claimRouter(newFakeEventStore(testEvent()), redeemer, &fakeBatchMinter{})

			w := doJSON(router, http.MethodPost, "/api/claim", validClaimBody, nil)
			assert.Equal(t, tc.expected, w.Code)
		})
	}
}

// A broadcast-but-unconfirmed mint is neither success nor failure: the
// caller gets 202 with the tx hash to watch.
func TestClaimPendingConfirmation(t *testing.T) {
	redeemer := &fakeRedeemer{err: errors.Wrap(errs.LedgerPending, "tx not confirmed")}
	router := claimRouter(newFakeEventStore(testEvent()), redeemer, &fakeBatchMinter{})

	w := doJSON(router, http.MethodPost, "/api/claim", validClaimBody, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status": "pending", "tx": "0xpending"}`, w.Body.String())
}

func unmarshalBody(w *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

const validBatchBody = `{
	"eventId": 1,
	"addresses": ["0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "0xcccccccccccccccccccccccccccccccccccccccc"]
}`

func TestMintBatchRequiresCredential(t *testing.T) {
	minter := &fakeBatchMinter{}
	router := claimRouter(newFakeEventStore(testEvent()), &fakeRedeemer{}, minter)

	w := doJSON(router, http.MethodPost, "/api/mintTokenBatch", validBatchBody, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/mintTokenBatch", validBatchBody, bearer("wrong-token"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, 0, minter.calls)
}

func TestMintBatchSuccess(t *testing.T) {
	minter := &fakeBatchMinter{}
	router := claimRouter(newFakeEventStore(testEvent()), &fakeRedeemer{}, minter)

	w := doJSON(router, http.MethodPost, "/api/mintTokenBatch", validBatchBody, bearer(testAPIToken))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, minter.calls)
}

func TestMintBatchPartialFailure(t *testing.T) {
	minter := &fakeBatchMinter{outcomes: []models.MintOutcome{
		{Address: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", Success: true, TxRef: "0xtx"},
		{Address: "0xcccccccccccccccccccccccccccccccccccccccc", ErrorKind: string(errs.LedgerPermanent)},
	}}
	router := claimRouter(newFakeEventStore(testEvent()), &fakeRedeemer{}, minter)

	w := doJSON(router, http.MethodPost, "/api/mintTokenBatch", validBatchBody, bearer(testAPIToken))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Outcomes []models.MintOutcome `json:"outcomes"`
	}
	require.NoError(t, unmarshalBody(w, &body))
	require.Len(t, body.Outcomes, 2)
	assert.True(t, body.Outcomes[0].Success)
	assert.False(t, body.Outcomes[1].Success)
}

func TestMintBatchTransientFailure(t *testing.T) {
	minter := &fakeBatchMinter{outcomes: []models.MintOutcome{
		{Address: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", ErrorKind: string(errs.LedgerTransient)},
		{Address: "0xcccccccccccccccccccccccccccccccccccccccc", Success: true, TxRef: "0xtx"},
	}}
	router := claimRouter(newFakeEventStore(testEvent()), &fakeRedeemer{}, minter)

	w := doJSON(router, http.MethodPost, "/api/mintTokenBatch", validBatchBody, bearer(testAPIToken))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestMintBatchPendingOutcomes(t *testing.T) {
	minter := &fakeBatchMinter{outcomes: []models.MintOutcome{
		{Address: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", Success: true, TxRef: "0xtx"},
		{Address: "0xcccccccccccccccccccccccccccccccccccccccc", TxRef: "0xpending", ErrorKind: string(errs.LedgerPending)},
	}}
	router := claimRouter(newFakeEventStore(testEvent()), &fakeRedeemer{}, minter)

	w := doJSON(router, http.MethodPost, "/api/mintTokenBatch", validBatchBody, bearer(testAPIToken))
	assert.Equal(t, http.StatusAccepted, w.Code)

	var body struct {
		Outcomes []models.MintOutcome `json:"outcomes"`
	}
	require.NoError(t, unmarshalBody(w, &body))
	require.Len(t, body.Outcomes, 2)
	assert.Equal(t, "0xpending", body.Outcomes[1].TxRef)
}

func TestMintBatchUnknownEvent(t *testing.T) {
	minter := &fakeBatchMinter{}
	router := claimRouter(newFakeEventStore(), &fakeRedeemer{}, minter)

	w := doJSON(router, http.MethodPost, "/api/mintTokenBatch", validBatchBody, bearer(testAPIToken))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, minter.calls)
}

func TestMintBatchEmptyAddresses(t *testing.T) {
	minter := &fakeBatchMinter{}
	router := claimRouter(newFakeEventStore(testEvent()), &fakeRedeemer{}, minter)

	w := doJSON(router, http.MethodPost, "/api/mintTokenBatch", `{"eventId": 1, "addresses": []}`, bearer(testAPIToken))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, minter.calls)
}
