package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poap-backend/models"
)

func eventRouter(store EventStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewEventHandler(store)
	router.GET("/api/events", handler.GetEvents)
	router.GET("/api/events/:fancyid", handler.GetEvent)
	router.PUT("/api/events/:fancyid", RequireAPIToken(testAPIToken), handler.UpdateEvent)
	return router
}

func TestGetEvents(t *testing.T) {
	router := eventRouter(newFakeEventStore(testEvent()))

	w := doJSON(router, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var events []models.Event
	require.NoError(t, unmarshalBody(w, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "devcon6", events[0].FancyID)
}

func TestGetEventByFancyID(t *testing.T) {
	router := eventRouter(newFakeEventStore(testEvent()))

	w := doJSON(router, http.MethodGet, "/api/events/devcon6", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/events/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateEventRequiresCredential(t *testing.T) {
	store := newFakeEventStore(testEvent())
	router := eventRouter(store)
	body := `{"signer": "0x` + strings.Repeat("cc", 20) + `"}`

	w := doJSON(router, http.MethodPut, "/api/events/devcon6", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPut, "/api/events/devcon6", body, bearer("wrong-token"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// No state mutated by the rejected requests.
	assert.Empty(t, store.updates)
}

func TestUpdateEvent(t *testing.T) {
	store := newFakeEventStore(testEvent())
	router := eventRouter(store)
	body := `{"signer": "0x` + strings.Repeat("cc", 20) + `", "event_url": "https://devcon.org"}`

	w := doJSON(router, http.MethodPut, "/api/events/devcon6", body, bearer(testAPIToken))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"devcon6"}, store.updates)
}

func TestUpdateEventInvalidSigner(t *testing.T) {
	store := newFakeEventStore(testEvent())
	router := eventRouter(store)

	w := doJSON(router, http.MethodPut, "/api/events/devcon6", `{"signer": "not-an-address"}`, bearer(testAPIToken))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.updates)
}

func TestUpdateEventUnknown(t *testing.T) {
	router := eventRouter(newFakeEventStore(testEvent()))

	w := doJSON(router, http.MethodPut, "/api/events/unknown", `{"signer": null}`, bearer(testAPIToken))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
