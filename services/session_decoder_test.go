package services_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/MaximeEsteves/backend-lesmidena/models"
	"github.com/MaximeEsteves/backend-lesmidena/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
)

func warningCodes(ws []services.AssemblyWarning) []string {
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

func TestDecodeMetadata_AllFields(t *testing.T) {
	meta, warnings := services.DecodeMetadata(fullMetadata(`[{"id":"p1","quantite":2},{"id":"p2","quantite":1}]`))

	assert.Empty(t, warnings)
	assert.Equal(t, "Alice Martin", meta.Name)
	assert.Equal(t, "alice@example.com", meta.Email)
	assert.Equal(t, "12 rue des Lilas", meta.Address)
	assert.Equal(t, "Lyon", meta.City)
	assert.Equal(t, "69003", meta.PostalCode)
	assert.Equal(t, []models.CartEntry{{ID: "p1", Quantity: 2}, {ID: "p2", Quantity: 1}}, meta.Cart)
}

func TestDecodeMetadata_Defaults(t *testing.T) {
	meta, warnings := services.DecodeMetadata(map[string]string{})

	assert.Equal(t, models.DefaultCustomerName, meta.Name)
	assert.Empty(t, meta.Email)
	assert.Empty(t, meta.Cart)
	assert.Equal(t, []string{services.WarnCartMalformed}, warningCodes(warnings))
}

func TestDecodeMetadata_MalformedCart(t *testing.T) {
	meta, warnings := services.DecodeMetadata(fullMetadata(`{not json`))

	assert.Empty(t, meta.Cart)
	assert.Equal(t, []string{services.WarnCartMalformed}, warningCodes(warnings))
}

func TestDecodeMetadata_InvalidEmailDropped(t *testing.T) {
	raw := fullMetadata(`[]`)
	raw[models.MetadataEmail] = "not-an-email"

	meta, warnings := services.DecodeMetadata(raw)
	assert.Empty(t, meta.Email)
	assert.Contains(t, warningCodes(warnings), services.WarnInvalidEmail)
}

func TestDecodeMetadata_CartEntries(t *testing.T) {
	meta, warnings := services.DecodeMetadata(fullMetadata(`[{"id":"","quantite":3},{"id":"p1","quantite":0},{"id":"p2","quantite":-4},{"id":" p3 ","quantite":5}]`))

	assert.Equal(t, []models.CartEntry{
		{ID: "p1", Quantity: 1},
		{ID: "p2", Quantity: 1},
		{ID: "p3", Quantity: 5},
	}, meta.Cart)
	assert.Equal(t, []string{services.WarnCartEntryNoID}, warningCodes(warnings))
}

func TestDecodeMetadata_MixedCartKeepsValidEntries(t *testing.T) {
	meta, warnings := services.DecodeMetadata(fullMetadata(
		`[{"id":"p1","quantite":2},{"id":"p2","quantite":"1"},{"id":"p3","quantite":"beaucoup"},{"id":"p4"},"p5",{"id":42,"quantite":3}]`,
	))

	assert.Equal(t, []models.CartEntry{
		{ID: "p1", Quantity: 2},
		{ID: "p2", Quantity: 1},
		{ID: "p3", Quantity: 1},
		{ID: "p4", Quantity: 1},
		{ID: "42", Quantity: 3},
	}, meta.Cart)
	assert.Equal(t, []string{services.WarnCartEntryQuantity, services.WarnCartEntryInvalid}, warningCodes(warnings))
	assert.Equal(t, "p3", warnings[0].ProductID)
}

func TestDecodeCheckoutSession(t *testing.T) {
	payload := checkoutEvent(t, eventOptions{sessionID: "sess_1", amount: 1500, metadata: fullMetadata(`[{"id":"p1","quantite":2}]`)})
	var event stripe.Event
	require.NoError(t, json.Unmarshal(payload, &event))

	sess, warnings, err := services.DecodeCheckoutSession(event)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "sess_1", sess.ID)
	assert.Equal(t, int64(1500), sess.AmountTotal)
	assert.Equal(t, "eur", sess.Currency)
	assert.Equal(t, []models.CartEntry{{ID: "p1", Quantity: 2}}, sess.Metadata.Cart)
}

func TestDecodeCheckoutSession_MissingID(t *testing.T) {
	payload := checkoutEvent(t, eventOptions{sessionID: "", amount: 1500})
	var event stripe.Event
	require.NoError(t, json.Unmarshal(payload, &event))

	_, _, err := services.DecodeCheckoutSession(event)
	assert.True(t, errors.Is(err, services.ErrMalformedEvent))
}
