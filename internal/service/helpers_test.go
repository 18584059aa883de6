package service_test

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
	"servicehub/internal/notify"
	"servicehub/internal/realtime"
	"servicehub/internal/store/sqlite"
)

func openRepos(t *testing.T) domain.Repositories {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	return sqlite.NewRepositories(db)
}

func seedProfile(t *testing.T, repos domain.Repositories, name string, role domain.Role) *domain.Profile {
	t.Helper()
	p := &domain.Profile{
		Email:        name + "@example.com",
		PasswordHash: "x",
		FullName:     name,
		UserType:     role,
	}
	require.NoError(t, repos.Profiles.Create(context.Background(), p))
	return p
}

func seedListing(t *testing.T, repos domain.Repositories, providerID, title string) *domain.Listing {
	t.Helper()
	amount := 50.0
	l := &domain.Listing{
		ProviderID:    providerID,
		Title:         title,
		Description:   "Leaks and clogs fixed",
		Category:      "Home Repair",
		PricingType:   domain.PricingHourly,
		PricingAmount: &amount,
		Currency:      "USD",
		LocationCity:  "Austin",
		LocationState: "TX",
		Status:        domain.ListingActive,
	}
	require.NoError(t, repos.Listings.Create(context.Background(), l))
	return l
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	return m.Called(ctx, prefix).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) BookingEvent(ctx context.Context, n notify.BookingNotification) error {
	return m.Called(ctx, n).Error(0)
}

func quietNotifier() *MockNotifier {
	n := &MockNotifier{}
	n.On("BookingEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	return n
}

// recorder collects published changes.
type recorder struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (r *recorder) Publish(c realtime.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) forTable(table string) []realtime.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []realtime.Change
	for _, c := range r.changes {
		if c.Table == table {
			out = append(out, c)
		}
	}
	return out
}
