package advisormock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/voltify/voltify/pkg/advisor"
	"github.com/voltify/voltify/pkg/types"
)

type MockAdvisor struct {
	mock.Mock
}

var _ advisor.Advisor = (*MockAdvisor)(nil)

func (m *MockAdvisor) Suggest(ctx context.Context, data types.HouseholdData) ([]string, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
