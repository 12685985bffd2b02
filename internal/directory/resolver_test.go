package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pulsehq/comms-gateway/internal/domain"
)

type fakeSource struct {
	employees []domain.Employee
	err       error
	calls     int
}

func (f *fakeSource) GetEmployees(_ context.Context, _ string, _ int) ([]domain.Employee, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.employees, nil
}

func TestResolverMapsBothIDKinds(t *testing.T) {
	source := &fakeSource{employees: []domain.Employee{
		{ID: "e1", UserID: "u2", FirstName: "Sarah", LastName: "Johnson"},
		{ID: "e2", FirstName: "Michael", LastName: "Chen"},
	}}
	r := NewResolver(source, nil, time.Minute, 200)

	r.Ensure(context.Background(), "tok", "company-1")

	assert.Equal(t, "Sarah Johnson", r.DisplayNameIn("company-1", "u2"))
	assert.Equal(t, "Sarah Johnson", r.DisplayNameIn("company-1", "e1"))
	assert.Equal(t, "Michael Chen", r.DisplayNameIn("company-1", "e2"))
}

func TestResolverFallsBackToTruncatedID(t *testing.T) {
	r := NewResolver(&fakeSource{}, nil, time.Minute, 200)

	// no Ensure yet: fallback
	assert.Equal(t, "aaaabbbb", r.DisplayNameIn("company-1", "aaaabbbbcccc"))
	assert.Equal(t, "short", r.DisplayNameIn("company-1", "short"))
}

func TestResolverSurvivesSourceFailure(t *testing.T) {
	source := &fakeSource{employees: []domain.Employee{
		{ID: "e1", UserID: "u2", FirstName: "Sarah", LastName: "Johnson"},
	}}
	r := NewResolver(source, nil, time.Nanosecond, 200)

	r.Ensure(context.Background(), "tok", "company-1")
	assert.Equal(t, "Sarah Johnson", r.DisplayNameIn("company-1", "u2"))

	// next refresh fails: previous names keep serving
	source.err = errors.New("boom")
	time.Sleep(time.Millisecond)
	r.Ensure(context.Background(), "tok", "company-1")
	assert.Equal(t, "Sarah Johnson", r.DisplayNameIn("company-1", "u2"))
}

func TestResolverRespectsTTL(t *testing.T) {
	source := &fakeSource{}
	r := NewResolver(source, nil, time.Hour, 200)

	r.Ensure(context.Background(), "tok", "company-1")
	r.Ensure(context.Background(), "tok", "company-1")

	assert.Equal(t, 1, source.calls)
}

func TestBindScopesToTenant(t *testing.T) {
	source := &fakeSource{employees: []domain.Employee{
		{ID: "e1", UserID: "u2", FirstName: "Sarah", LastName: "Johnson"},
	}}
	r := NewResolver(source, nil, time.Minute, 200)
	r.Ensure(context.Background(), "tok", "company-1")

	bound := r.Bind("company-1")
	assert.Equal(t, "Sarah Johnson", bound.DisplayName("u2"))

	other := r.Bind("company-2")
	assert.Equal(t, "u2", other.DisplayName("u2"))
}
