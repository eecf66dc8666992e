package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobdeck/jobdeck/internal/board/store"
	"github.com/rs/zerolog/log"
	stripelib "github.com/stripe/stripe-go/v82"
	stripecustomer "github.com/stripe/stripe-go/v82/customer"
)

// CustomerResolver maps local users to Stripe customers, creating the Stripe
// customer lazily on first use and persisting the mapping before returning.
type CustomerResolver struct {
	store          *store.Store
	createCustomer func(params *stripelib.CustomerParams) (*stripelib.Customer, error)
}

// NewCustomerResolver creates a CustomerResolver backed by the Stripe API.
func NewCustomerResolver(st *store.Store) *CustomerResolver {
	return &CustomerResolver{
		store:          st,
		createCustomer: stripecustomer.New,
	}
}

// Resolve returns the Stripe customer ID for a user.
//
// An existing mapping is returned without any network call. Otherwise a
// Stripe customer is created and the mapping persisted before the ID is
// returned. If a concurrent first checkout won the insert race, the winner's
// mapping is reused and the extra Stripe customer is logged for
// reconciliation rather than silently dropped.
func (r *CustomerResolver) Resolve(ctx context.Context, user *store.User) (string, error) {
	if user == nil {
		return "", fmt.Errorf("user is nil")
	}

	existing, err := r.store.GetBillingIdentity(user.ID)
	if err != nil {
		return "", fmt.Errorf("lookup billing identity: %w", err)
	}
	if existing != nil {
		return existing.StripeCustomerID, nil
	}

	params := &stripelib.CustomerParams{
		Email: stripelib.String(strings.TrimSpace(user.Email)),
		Name:  stripelib.String(strings.TrimSpace(user.Name)),
	}
	params.Context = ctx
	cust, err := r.createCustomer(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if cust == nil || strings.TrimSpace(cust.ID) == "" {
		return "", fmt.Errorf("create stripe customer: empty customer id")
	}

	mapping := &store.BillingIdentity{
		UserID:           user.ID,
		StripeCustomerID: cust.ID,
	}
	if createErr := r.store.CreateBillingIdentity(mapping); createErr != nil {
		// A competing checkout may have created the mapping first; reuse it.
		winner, reloadErr := r.store.GetBillingIdentity(user.ID)
		if reloadErr == nil && winner != nil {
			log.Warn().
				Str("user_id", user.ID).
				Str("orphaned_customer_id", cust.ID).
				Str("customer_id", winner.StripeCustomerID).
				Msg("Concurrent billing identity creation; reusing winner, orphaned Stripe customer needs reconciliation")
			return winner.StripeCustomerID, nil
		}
		log.Error().
			Err(createErr).
			Str("user_id", user.ID).
			Str("orphaned_customer_id", cust.ID).
			Msg("Billing identity persist failed after Stripe customer creation; customer needs reconciliation")
		return "", fmt.Errorf("persist billing identity: %w", createErr)
	}

	return cust.ID, nil
}
