package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/jobdeck/jobdeck/internal/board/store"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUserAndCompany(t *testing.T, st *store.Store, userID, companyID string) *store.User {
	t.Helper()
	token, err := store.GenerateAPIToken()
	if err != nil {
		t.Fatalf("GenerateAPIToken: %v", err)
	}
	u := &store.User{ID: userID, Email: userID + "@example.com", Name: "Test User", APIToken: token}
	if err := st.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := st.CreateCompany(&store.Company{ID: companyID, UserID: userID, Name: "Acme"}); err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	return u
}

func TestResolveCreatesCustomerOnceAndPersistsFirst(t *testing.T) {
	st := newTestStore(t)
	user := seedUserAndCompany(t, st, "user-1", "comp-1")

	calls := 0
	resolver := &CustomerResolver{
		store: st,
		createCustomer: func(params *stripelib.CustomerParams) (*stripelib.Customer, error) {
			calls++
			assert.Equal(t, "user-1@example.com", stripelib.StringValue(params.Email))
			assert.Equal(t, "Test User", stripelib.StringValue(params.Name))
			return &stripelib.Customer{ID: "cus_new123"}, nil
		},
	}

	id, err := resolver.Resolve(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "cus_new123", id)
	require.Equal(t, 1, calls)

	// Mapping must be persisted before Resolve returns.
	mapping, err := st.GetBillingIdentity("user-1")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, "cus_new123", mapping.StripeCustomerID)

	// Second resolve hits the store, not Stripe.
	id, err = resolver.Resolve(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "cus_new123", id)
	assert.Equal(t, 1, calls)
}

func TestResolveReusesWinnerOnInsertRace(t *testing.T) {
	st := newTestStore(t)
	user := seedUserAndCompany(t, st, "user-1", "comp-1")

	resolver := &CustomerResolver{
		store: st,
		createCustomer: func(params *stripelib.CustomerParams) (*stripelib.Customer, error) {
			// Simulate a competing checkout winning the insert while this
			// Stripe call was in flight.
			winner := &store.BillingIdentity{UserID: "user-1", StripeCustomerID: "cus_winner"}
			if err := st.CreateBillingIdentity(winner); err != nil {
				t.Fatalf("CreateBillingIdentity: %v", err)
			}
			return &stripelib.Customer{ID: "cus_loser"}, nil
		},
	}

	id, err := resolver.Resolve(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "cus_winner", id, "loser must re-read and return the winner's id")

	mapping, err := st.GetBillingIdentity("user-1")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, "cus_winner", mapping.StripeCustomerID, "winner mapping must never be overwritten")
}

func TestResolvePropagatesStripeFailure(t *testing.T) {
	st := newTestStore(t)
	user := seedUserAndCompany(t, st, "user-1", "comp-1")

	resolver := &CustomerResolver{
		store: st,
		createCustomer: func(params *stripelib.CustomerParams) (*stripelib.Customer, error) {
			return nil, errors.New("stripe unavailable")
		},
	}

	_, err := resolver.Resolve(context.Background(), user)
	require.Error(t, err)

	mapping, err := st.GetBillingIdentity("user-1")
	require.NoError(t, err)
	assert.Nil(t, mapping, "no mapping may be persisted when Stripe creation fails")
}
