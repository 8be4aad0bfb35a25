package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MaximeEsteves/backend-lesmidena/models"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v80"
)

// Warning codes attached to an assembled order.
const (
	WarnCartMalformed     = "cart_malformed"
	WarnCartEntryNoID     = "cart_entry_without_id"
	WarnCartEntryInvalid  = "cart_entry_invalid"
	WarnCartEntryQuantity = "cart_entry_bad_quantity"
	WarnInvalidEmail      = "invalid_customer_email"
	WarnCatalogMiss       = "catalog_miss"
	WarnCatalogError      = "catalog_error"
)

type AssemblyWarning struct {
	Code      string
	ProductID string
	Detail    string
}

var validate = validator.New()

// DecodeCheckoutSession turns the raw event object into a CheckoutSession. Only a
// payload that is not a checkout session at all is an error; bad metadata fields
// are defaulted and reported as warnings.
func DecodeCheckoutSession(event stripe.Event) (*models.CheckoutSession, []AssemblyWarning, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if sess.ID == "" {
		return nil, nil, fmt.Errorf("%w: missing session id", ErrMalformedEvent)
	}

	meta, warnings := DecodeMetadata(sess.Metadata)
	return &models.CheckoutSession{
		ID:          sess.ID,
		Metadata:    meta,
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
	}, warnings, nil
}

// DecodeMetadata reads the storefront metadata keys. A missing or malformed cart
// yields an empty cart and a WarnCartMalformed warning rather than an error.
func DecodeMetadata(raw map[string]string) (models.SessionMetadata, []AssemblyWarning) {
	var warnings []AssemblyWarning

	meta := models.SessionMetadata{
		Name:       strings.TrimSpace(raw[models.MetadataName]),
		Email:      strings.TrimSpace(raw[models.MetadataEmail]),
		Address:    raw[models.MetadataAddress],
		City:       raw[models.MetadataCity],
		PostalCode: raw[models.MetadataPostalCode],
	}
	if meta.Name == "" {
		meta.Name = models.DefaultCustomerName
	}
	if meta.Email != "" && validate.Var(meta.Email, "email") != nil {
		warnings = append(warnings, AssemblyWarning{Code: WarnInvalidEmail, Detail: meta.Email})
		meta.Email = ""
	}

	cart, cartWarnings := decodeCart(raw[models.MetadataProducts])
	meta.Cart = cart
	warnings = append(warnings, cartWarnings...)

	return meta, warnings
}

// rawCartEntry defers field decoding so one bad entry cannot void the cart.
type rawCartEntry struct {
	ID       json.RawMessage `json:"id"`
	Quantity json.RawMessage `json:"quantite"`
}

func decodeCart(payload string) ([]models.CartEntry, []AssemblyWarning) {
	if strings.TrimSpace(payload) == "" {
		return nil, []AssemblyWarning{{Code: WarnCartMalformed, Detail: "products metadata missing"}}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, []AssemblyWarning{{Code: WarnCartMalformed, Detail: err.Error()}}
	}

	var warnings []AssemblyWarning
	cart := make([]models.CartEntry, 0, len(items))
	for i, item := range items {
		var raw rawCartEntry
		if err := json.Unmarshal(item, &raw); err != nil {
			warnings = append(warnings, AssemblyWarning{Code: WarnCartEntryInvalid, Detail: fmt.Sprintf("entry %d: %v", i, err)})
			continue
		}
		id := cartEntryID(raw.ID)
		if id == "" {
			warnings = append(warnings, AssemblyWarning{Code: WarnCartEntryNoID, Detail: fmt.Sprintf("entry %d", i)})
			continue
		}
		qty, ok := cartEntryQuantity(raw.Quantity)
		if !ok {
			warnings = append(warnings, AssemblyWarning{
				Code:      WarnCartEntryQuantity,
				ProductID: id,
				Detail:    fmt.Sprintf("entry %d: quantite %s", i, raw.Quantity),
			})
		}
		cart = append(cart, models.CartEntry{ID: id, Quantity: qty})
	}
	return cart, warnings
}

// cartEntryID accepts a string or numeric id.
func cartEntryID(raw json.RawMessage) string {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}

// cartEntryQuantity reads a number or a numeric string. A missing, null or
// non-positive quantity counts as 1; anything unreadable also counts as 1 and
// reports false.
func cartEntryQuantity(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 1, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var text string
		if json.Unmarshal(raw, &text) != nil {
			return 1, false
		}
		n = json.Number(strings.TrimSpace(text))
	}
	qty, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return 1, false
		}
		qty = int64(f)
	}
	if qty <= 0 {
		return 1, true
	}
	return int(qty), true
}
