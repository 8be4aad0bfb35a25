package models

// Stripe metadata keys written by the storefront when it creates the checkout session.
const (
	MetadataName       = "nom"
	MetadataEmail      = "email"
	MetadataAddress    = "adresse"
	MetadataCity       = "ville"
	MetadataPostalCode = "cp"
	MetadataProducts   = "products"

	DefaultCustomerName = "Inconnu"
)

const EventCheckoutSessionCompleted = "checkout.session.completed"

// PaymentEvent is the verified envelope of one webhook delivery.
type PaymentEvent struct {
	ID        string
	Type      string
	Payload   []byte
	Signature string
}

// CartEntry is one element of the serialized cart carried in the session metadata.
type CartEntry struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantite"`
}

// SessionMetadata is the decoded, validated form of the checkout session metadata.
type SessionMetadata struct {
	Name       string
	Email      string
	Address    string
	City       string
	PostalCode string
	Cart       []CartEntry
}

// CheckoutSession holds what the pipeline needs from a completed Stripe session.
type CheckoutSession struct {
	ID          string
	Metadata    SessionMetadata
	AmountTotal int64
	Currency    string
}
