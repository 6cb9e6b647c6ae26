package mocks

import (
	"github.com/stretchr/testify/mock"

	"code-intelligence.com/lddr/internal/ldd"
)

type LocatorMock struct {
	mock.Mock
}

var _ ldd.Locator = (*LocatorMock)(nil)

func (m *LocatorMock) Locate(name string, searchDirs []string) (string, bool) {
	args := m.Called(name, searchDirs)
	return args.String(0), args.Bool(1)
}
